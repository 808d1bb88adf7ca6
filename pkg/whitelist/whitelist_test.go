package whitelist

import (
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rules = `
# management network may log in anywhere
src 10.10.0.0/16 *
src 192.0.2.7 22
dst 198.51.100.0/24 3389,22
dst 2001:db8::/32
src ::/0 23
`

func addr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

func TestIsWhitelisted(t *testing.T) {
	w, err := Parse(strings.NewReader(rules))
	require.NoError(t, err)
	assert.Equal(t, 5, w.Len())

	type testCase struct {
		src, dst     string
		sport, dport uint16
		out          bool
		msg          string
	}

	testCases := []testCase{
		{"10.10.3.4", "8.8.8.8", 50000, 22, true, "source prefix with all ports"},
		{"10.11.3.4", "8.8.8.8", 50000, 22, false, "outside source prefix"},
		{"192.0.2.7", "8.8.8.8", 50000, 22, true, "single address with matching port"},
		{"192.0.2.7", "8.8.8.8", 50000, 3389, false, "single address with other port"},
		{"203.0.113.1", "198.51.100.9", 40000, 3389, true, "destination prefix with port list"},
		{"203.0.113.1", "198.51.100.9", 40000, 23, false, "destination prefix with other port"},
		{"203.0.113.1", "2001:db8::1", 40000, 443, true, "IPv6 destination all ports"},
		{"2001:db9::1", "2001:dc8::1", 40000, 23, true, "zero length IPv6 source prefix"},
		{"2001:db9::1", "2001:dc8::1", 40000, 22, false, "zero length prefix other port"},
		{"::ffff:10.10.3.4", "8.8.8.8", 50000, 22, true, "mapped source is looked up as IPv4"},
	}

	for _, test := range testCases {
		assert.Equal(t, test.out, w.IsWhitelisted(addr(test.src), addr(test.dst), test.sport, test.dport), test.msg)
	}
}

func TestLongerPrefixTriedFirst(t *testing.T) {
	w := New()
	w.AddSource(netip.MustParsePrefix("10.0.0.0/8"), 22)
	w.AddSource(netip.MustParsePrefix("10.1.0.0/16"), 3389)

	// the /16 does not allow 22 but the shorter /8 does
	assert.True(t, w.IsWhitelisted(addr("10.1.2.3"), addr("1.1.1.1"), 1000, 22))
	assert.True(t, w.IsWhitelisted(addr("10.1.2.3"), addr("1.1.1.1"), 1000, 3389))
	assert.False(t, w.IsWhitelisted(addr("10.2.2.3"), addr("1.1.1.1"), 1000, 3389))
}

func TestAllPortsWins(t *testing.T) {
	w := New()
	w.AddDestination(netip.MustParsePrefix("192.0.2.0/24"), 22)
	w.AddDestination(netip.MustParsePrefix("192.0.2.0/24"))
	w.AddDestination(netip.MustParsePrefix("192.0.2.0/24"), 80)
	assert.True(t, w.IsWhitelisted(addr("1.1.1.1"), addr("192.0.2.1"), 1000, 443))
}

func TestEmpty(t *testing.T) {
	var nilList *Whitelist
	assert.False(t, nilList.IsWhitelisted(addr("1.1.1.1"), addr("2.2.2.2"), 1, 2))
	assert.False(t, New().IsWhitelisted(addr("1.1.1.1"), addr("2.2.2.2"), 1, 2))
}

func TestParseErrors(t *testing.T) {
	for _, contents := range []string{
		"src",
		"src 10.0.0.0/33",
		"src 10.0.0.1 ssh",
		"src 10.0.0.1 70000",
		"both 10.0.0.1 22",
		"src 10.0.0.1 22 extra",
	} {
		_, err := Parse(strings.NewReader(contents))
		assert.Error(t, err, contents)
	}
}

func TestHolderReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.txt")

	// a missing file is an empty whitelist
	h, err := NewHolder(path)
	require.NoError(t, err)
	assert.Equal(t, 0, h.Current().Len())

	require.NoError(t, os.WriteFile(path, []byte("src 10.0.0.0/8 *\n"), 0644))
	require.NoError(t, h.Reload())
	assert.True(t, h.Current().IsWhitelisted(addr("10.0.0.1"), addr("1.1.1.1"), 1, 22))

	// a broken file keeps the previous rules
	require.NoError(t, os.WriteFile(path, []byte("src nonsense\n"), 0644))
	assert.Error(t, h.Reload())
	assert.True(t, h.Current().IsWhitelisted(addr("10.0.0.1"), addr("1.1.1.1"), 1, 22))
}
