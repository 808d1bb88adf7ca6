package signature

import (
	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/pkg/flow"
)

// Protocol describes one brute forced service. It is the only thing that
// differs between the SSH, RDP and TELNET detectors.
type Protocol struct {
	Name string
	Port uint16

	// Profiles is set when outgoing flows are also checked against the
	// usual response size of each server
	Profiles *ServerProfiles
}

// SSH is the secure shell service on tcp/22
func SSH() *Protocol {
	return &Protocol{Name: "SSH", Port: 22}
}

// RDP is the remote desktop service on tcp/3389
func RDP() *Protocol {
	return &Protocol{Name: "RDP", Port: 3389}
}

// TELNET is the telnet service on tcp/23. Its outgoing flows are only
// counted once the server has a response profile.
func TELNET() *Protocol {
	return &Protocol{Name: "TELNET", Port: 23, Profiles: NewServerProfiles()}
}

// ByName returns the constructor result for a service name
func ByName(name string) (*Protocol, bool) {
	switch name {
	case "SSH":
		return SSH(), true
	case "RDP":
		return RDP(), true
	case "TELNET":
		return TELNET(), true
	}
	return nil, false
}

// Settings returns the thresholds of the service from cfg
func (p *Protocol) Settings(cfg *config.Config) *config.ProtocolStaticCfg {
	s, err := cfg.S.BruteForce.Protocol(p.Name)
	if err != nil {
		// the constructors above only create known services
		panic(err)
	}
	return s
}

// Match reports whether rec, already resolved to dir, is a login attempt.
// For services with server profiles every outgoing flow also updates the
// profile of its server, after the flow was compared with it.
func (p *Protocol) Match(cfg *config.Config, wl Whitelist, rec *flow.Record, dir Direction) bool {
	settings := p.Settings(cfg)
	matched := MatchRule(dir.Rule(settings), rec.Packets, rec.Bytes, rec.TCPFlags)

	if dir == Outgoing && p.Profiles != nil {
		within := p.Profiles.Observe(rec.SrcIP, rec.Packets, rec.Bytes, rec.TimeLast, cfg.S.BruteForce.TelnetProfile)
		matched = matched && within
	}

	if matched && Whitelisted(wl, rec, dir) {
		return false
	}
	return matched
}
