package util

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

type parseSubnetsTestCase struct {
	nets    []string
	out     []netip.Prefix
	wantErr bool
	msg     string
}

// Ensures ParseSubnets returns expected prefixes and returns
// error when invalid IP address/CIDR network is provided.
func TestParseSubnets(t *testing.T) {
	validNets := []string{"192.168.0.0/24", "2001:db8::/32", "192.168.0.1", "2001:db8::1", "::ffff:10.0.0.0/104", "10.1.2.3/8"}
	validNetsOutput := createPrefixes([]string{"192.168.0.0/24", "2001:db8::/32", "192.168.0.1/32", "2001:db8::1/128", "10.0.0.0/8", "10.0.0.0/8"})
	invalidNets := []string{"invalidIP", "300.0.0.0/24"}

	testCases := []parseSubnetsTestCase{
		{
			nets:    validNets,
			out:     validNetsOutput,
			wantErr: false,
			msg:     "Valid mixed subnets",
		},
		{
			nets:    invalidNets,
			out:     nil,
			wantErr: true,
			msg:     "Invalid subnets (Expecting Error)",
		},
	}

	for _, testCase := range testCases {
		output, err := ParseSubnets(testCase.nets)
		assert.Equal(t, testCase.out, output, testCase.msg)
		assert.Equal(t, testCase.wantErr, err != nil, testCase.msg)
	}
}

func TestContainsIP(t *testing.T) {
	subnets := createPrefixes([]string{"10.0.0.0/8", "2001:db8::/32"})

	type testCase struct {
		ip  string
		out bool
		msg string
	}

	testCases := []testCase{
		{"10.1.2.3", true, "inside IPv4 range"},
		{"::ffff:10.1.2.3", true, "mapped address is unmapped"},
		{"11.0.0.1", false, "outside IPv4 range"},
		{"2001:db8::5", true, "inside IPv6 range"},
		{"2001:db9::5", false, "outside IPv6 range"},
	}

	for _, test := range testCases {
		assert.Equal(t, test.out, ContainsIP(subnets, netip.MustParseAddr(test.ip)), test.msg)
	}
}

func createPrefixes(cidr []string) []netip.Prefix {
	prefixes := make([]netip.Prefix, len(cidr))
	for i, entry := range cidr {
		prefixes[i] = netip.MustParsePrefix(entry)
	}
	return prefixes
}
