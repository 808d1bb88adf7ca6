package blacklist

import (
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listA = `
# feodo tracker
203.0.113.9
198.51.100.0/24   # whole network
2001:db8::1
`

func writeList(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParse(t *testing.T) {
	bl, err := Parse("a", strings.NewReader(listA))
	require.NoError(t, err)
	assert.Equal(t, 3, bl.Len())

	type testCase struct {
		addr  string
		lists []string
	}

	testCases := []testCase{
		{"203.0.113.9", []string{"a"}},
		{"203.0.113.10", nil},
		{"198.51.100.77", []string{"a"}},
		{"::ffff:198.51.100.77", []string{"a"}},
		{"2001:db8::1", []string{"a"}},
		{"2001:db8::2", nil},
	}

	for _, test := range testCases {
		assert.Equal(t, test.lists, bl.Lookup(netip.MustParseAddr(test.addr)), test.addr)
	}
}

func TestParseError(t *testing.T) {
	_, err := Parse("bad", strings.NewReader("10.0.0.1\nnot-an-ip\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadSeveralLists(t *testing.T) {
	dir := t.TempDir()
	a := writeList(t, dir, "feodo.txt", listA)
	b := writeList(t, dir, "spamhaus.txt", "198.51.100.5\n")

	bl, err := Load([]string{b, a})
	require.NoError(t, err)
	assert.Equal(t, []string{"spamhaus", "feodo"}, bl.Lists())
	assert.Equal(t, []string{"feodo", "spamhaus"}, bl.Lookup(netip.MustParseAddr("198.51.100.5")))

	_, err = Load([]string{a, filepath.Join(dir, "missing.txt")})
	assert.Error(t, err)
}

func TestNilBlacklist(t *testing.T) {
	var bl *Blacklist
	assert.Nil(t, bl.Lookup(netip.MustParseAddr("10.0.0.1")))
	assert.Zero(t, bl.Len())
	assert.Nil(t, bl.Lists())
}

func TestHolderReload(t *testing.T) {
	dir := t.TempDir()
	path := writeList(t, dir, "bl.txt", "10.0.0.1\n")

	h, err := NewHolder([]string{path})
	require.NoError(t, err)
	assert.Equal(t, []string{path}, h.Paths())
	assert.NotEmpty(t, h.Current().Lookup(netip.MustParseAddr("10.0.0.1")))

	writeList(t, dir, "bl.txt", "10.0.0.2\n")
	require.NoError(t, h.Reload())
	assert.Empty(t, h.Current().Lookup(netip.MustParseAddr("10.0.0.1")))
	assert.NotEmpty(t, h.Current().Lookup(netip.MustParseAddr("10.0.0.2")))

	// a broken file keeps the previous list active
	writeList(t, dir, "bl.txt", "garbage\n")
	assert.Error(t, h.Reload())
	assert.NotEmpty(t, h.Current().Lookup(netip.MustParseAddr("10.0.0.2")))
}
