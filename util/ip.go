package util

import (
	"fmt"
	"net/netip"
	"strings"
)

// ParsePrefix parses a CIDR range or a single address. A single address
// becomes a /32 or /128 prefix. IPv4 mapped IPv6 input is unmapped so
// that it lands in the IPv4 family.
func ParsePrefix(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, err
		}
		addr := prefix.Addr()
		bits := prefix.Bits()
		if addr.Is4In6() {
			if bits < 96 {
				return netip.Prefix{}, fmt.Errorf("mapped prefix %s is shorter than /96", entry)
			}
			addr, bits = addr.Unmap(), bits-96
		}
		return netip.PrefixFrom(addr, bits).Masked(), nil
	}

	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// ParseSubnets parses the provided subnets into prefixes
func ParseSubnets(subnets []string) ([]netip.Prefix, error) {
	var parsedSubnets []netip.Prefix

	for _, entry := range subnets {
		prefix, err := ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("error parsing entry %q: %w", entry, err)
		}
		parsedSubnets = append(parsedSubnets, prefix)
	}
	return parsedSubnets, nil
}

//ContainsIP checks if a collection of subnets contains an IP
func ContainsIP(subnets []netip.Prefix, ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, block := range subnets {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}
