package signature

import (
	"net/netip"
	"time"

	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/pkg/ipindex"
	"github.com/activecm/flowsentry/pkg/stats"
)

// profile is the rolling record of the last responses of one server
type profile struct {
	packets []uint64
	bytes   []uint64
	next    int
	count   int

	ready        bool
	sinceRefresh int
	medPackets   uint64
	medBytes     uint64

	lastSeen time.Time
}

func (p *profile) observe(packets, bytes uint64, now time.Time, cfg config.TelnetProfileCfg) {
	if len(p.packets) != cfg.Size {
		// the profile size was reloaded, start over
		*p = profile{
			packets: make([]uint64, cfg.Size),
			bytes:   make([]uint64, cfg.Size),
		}
	}
	p.packets[p.next] = packets
	p.bytes[p.next] = bytes
	p.next = (p.next + 1) % cfg.Size
	if p.count < cfg.Size {
		p.count++
	}
	p.lastSeen = now

	switch {
	case !p.ready && p.count == cfg.Size:
		p.ready = true
		p.refresh()
	case p.ready:
		p.sinceRefresh++
		if p.sinceRefresh >= cfg.Refresh {
			p.refresh()
		}
	}
}

func (p *profile) refresh() {
	p.medPackets = stats.Median(p.packets)
	p.medBytes = stats.Median(p.bytes)
	p.sinceRefresh = 0
}

// ServerProfiles keeps a response profile per server address
type ServerProfiles struct {
	index *ipindex.Index[profile]
}

// NewServerProfiles returns an empty profile set
func NewServerProfiles() *ServerProfiles {
	return &ServerProfiles{index: ipindex.NewIndex[profile](ipindex.DefaultOrder)}
}

// Observe compares a response of server with the server's profile and
// then adds it to the profile. The response is within the profile when
// the profile is complete and neither the packet count nor the byte count
// exceeds the median plus its margin.
func (s *ServerProfiles) Observe(server netip.Addr, packets, bytes uint64, now time.Time, cfg config.TelnetProfileCfg) bool {
	p, _ := s.index.FindOrInsert(server)
	within := p.ready &&
		packets <= p.medPackets+cfg.PacketMargin &&
		bytes <= p.medBytes+cfg.ByteMargin
	p.observe(packets, bytes, now, cfg)
	return within
}

// Medians returns the current medians of server. ok is false until the
// profile is complete.
func (s *ServerProfiles) Medians(server netip.Addr) (packets, bytes uint64, ok bool) {
	p, found := s.index.Get(server)
	if !found || !p.ready {
		return 0, 0, false
	}
	return p.medPackets, p.medBytes, true
}

// Len returns the number of profiled servers
func (s *ServerProfiles) Len() int {
	return s.index.Len()
}

// Sweep drops the profiles of servers not seen for longer than timeout
func (s *ServerProfiles) Sweep(now time.Time, timeout time.Duration) int {
	return s.index.Sweep(func(_ netip.Addr, p *profile) bool {
		return now.Sub(p.lastSeen) > timeout
	})
}
