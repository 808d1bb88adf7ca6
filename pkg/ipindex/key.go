package ipindex

import (
	"encoding/binary"
	"net/netip"
)

// Key is a 128 bit index key stored as two big endian halves. IPv4
// addresses occupy the high 32 bits of Hi so that comparing keys gives
// the same order as comparing the raw network byte order addresses.
type Key struct {
	Hi uint64
	Lo uint64
}

// KeyFromAddr converts an address into its index key
func KeyFromAddr(addr netip.Addr) Key {
	addr = addr.Unmap()
	if addr.Is4() {
		b := addr.As4()
		return Key{Hi: uint64(binary.BigEndian.Uint32(b[:])) << 32}
	}
	b := addr.As16()
	return Key{
		Hi: binary.BigEndian.Uint64(b[:8]),
		Lo: binary.BigEndian.Uint64(b[8:]),
	}
}

// Addr converts a key back into an address of the given family
func (k Key) Addr(v4 bool) netip.Addr {
	if v4 {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(k.Hi>>32))
		return netip.AddrFrom4(b)
	}
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], k.Hi)
	binary.BigEndian.PutUint64(b[8:], k.Lo)
	return netip.AddrFrom16(b)
}

// Less reports whether k orders before o
func (k Key) Less(o Key) bool {
	if k.Hi != o.Hi {
		return k.Hi < o.Hi
	}
	return k.Lo < o.Lo
}

// Compare returns -1, 0 or 1 as k orders before, equal to or after o
func (k Key) Compare(o Key) int {
	switch {
	case k.Less(o):
		return -1
	case o.Less(k):
		return 1
	}
	return 0
}
