package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTCPFlags(t *testing.T) {
	type testCase struct {
		in      string
		out     uint8
		wantErr bool
		msg     string
	}

	testCases := []testCase{
		{"SYN|ACK|PSH", SYN | ACK | PSH, false, "pipe separated"},
		{"syn, ack", SYN | ACK, false, "comma separated lower case"},
		{"FIN RST", FIN | RST, false, "space separated"},
		{"", 0, false, "no flags"},
		{"SYN|BOGUS", 0, true, "unknown flag"},
	}

	for _, test := range testCases {
		out, err := ParseTCPFlags(test.in)
		assert.Equal(t, test.wantErr, err != nil, test.msg)
		if !test.wantErr {
			assert.Equal(t, test.out, out, test.msg)
		}
	}
}

func TestFormatTCPFlags(t *testing.T) {
	assert.Equal(t, "SYN|PSH|ACK", FormatTCPFlags(SYN|ACK|PSH))
	flags, err := ParseTCPFlags(FormatTCPFlags(0xff))
	assert.Nil(t, err)
	assert.Equal(t, uint8(0xff), flags)
}
