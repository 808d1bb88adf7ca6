// Package signature decides whether a flow looks like one login attempt
// against a brute forced service.
package signature

import (
	"net/netip"

	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/pkg/flow"
)

// Direction tells which side of a flow the service is on
type Direction int

const (
	// Incoming flows are sent to the service port
	Incoming Direction = iota
	// Outgoing flows are sent from the service port
	Outgoing
)

func (d Direction) String() string {
	if d == Outgoing {
		return "outgoing"
	}
	return "incoming"
}

// Rule returns the signature of direction d from a service section
func (d Direction) Rule(s *config.ProtocolStaticCfg) *config.RuleCfg {
	if d == Outgoing {
		return &s.Outgoing
	}
	return &s.Incoming
}

// Resolve works out the direction of rec relative to a service port. The
// attacker is the client side of the communication and the victim the
// server side. ok is false when neither port is the service port.
func Resolve(rec *flow.Record, port uint16) (dir Direction, attacker, victim netip.Addr, ok bool) {
	switch {
	case rec.DstPort == port:
		return Incoming, rec.SrcIP, rec.DstIP, true
	case rec.SrcPort == port:
		return Outgoing, rec.DstIP, rec.SrcIP, true
	}
	return Incoming, netip.Addr{}, netip.Addr{}, false
}

// scanShapes lists the packet count and flag byte of flows that are bare
// TCP probes rather than login attempts
var scanShapes = [...]struct {
	packets uint64
	flags   uint8
}{
	{1, flow.SYN},
	{1, flow.RST},
	{1, flow.RST | flow.ACK},
	{2, flow.SYN | flow.RST},
	{2, flow.SYN | flow.RST | flow.ACK},
	{3, flow.SYN | flow.RST | flow.ACK},
}

// IsScan reports whether a flow with the given packet count and flags is
// a port scan probe
func IsScan(packets uint64, flags uint8) bool {
	for _, s := range scanShapes {
		if packets == s.packets && flags == s.flags {
			return true
		}
	}
	return false
}

// MatchRule checks the flags, packet count and byte count of a flow
// against one rule. Ranges are closed. An exact rule needs the flag byte
// to equal the mask, otherwise the mask bits only need to be set.
func MatchRule(rule *config.RuleCfg, packets, bytes uint64, flags uint8) bool {
	if rule.ExactFlags {
		if flags != rule.Mask {
			return false
		}
	} else if flags&rule.Mask != rule.Mask {
		return false
	}
	return packets >= rule.MinPackets && packets <= rule.MaxPackets &&
		bytes >= rule.MinBytes && bytes <= rule.MaxBytes
}

// Whitelist is consulted before a flow is counted as matching
type Whitelist interface {
	IsWhitelisted(src, dst netip.Addr, sport, dport uint16) bool
}

// Whitelisted looks rec up in communication orientation, client first.
// Outgoing flows are swapped so the client is the source.
func Whitelisted(wl Whitelist, rec *flow.Record, dir Direction) bool {
	if wl == nil {
		return false
	}
	if dir == Outgoing {
		return wl.IsWhitelisted(rec.DstIP, rec.SrcIP, rec.DstPort, rec.SrcPort)
	}
	return wl.IsWhitelisted(rec.SrcIP, rec.DstIP, rec.SrcPort, rec.DstPort)
}
