// Package dnstunnel scores DNS clients on how unique their query names
// are and how large the answers they get are, and reports the ones that
// look like they carry data through DNS.
package dnstunnel

import (
	"net/netip"
	"time"

	"github.com/activecm/flowsentry/pkg/detector"
	"github.com/activecm/flowsentry/pkg/flow"
	"github.com/activecm/flowsentry/pkg/ipindex"
	"github.com/activecm/flowsentry/pkg/report"
	log "github.com/sirupsen/logrus"
)

// Detector tracks DNS clients
type Detector struct {
	hosts  *ipindex.Index[Host]
	sender report.Sender
	log    *log.Logger

	clock   detector.Clock
	now     time.Time
	refused int
}

// New creates a DNS tunnel detector reporting through sender
func New(sender report.Sender, logger *log.Logger) *Detector {
	return &Detector{
		hosts:  ipindex.NewIndex[Host](ipindex.DefaultOrder),
		sender: sender,
		log:    logger,
	}
}

// Name returns dnstunnel
func (d *Detector) Name() string { return report.DetectorDNSTunnel }

// Tracked returns the number of tracked clients
func (d *Detector) Tracked() int { return d.hosts.Len() }

// Refused returns how many new clients were not tracked because the
// client limit was reached
func (d *Detector) Refused() int { return d.refused }

// Host returns the state of a client
func (d *Detector) Host(ip netip.Addr) (*Host, bool) {
	return d.hosts.Get(ip)
}

// Process accounts a DNS request to the client that sent it or a DNS
// response to the client that receives it.
func (d *Detector) Process(env detector.Env, rec *flow.Record) detector.Outcome {
	s := &env.Config.S.DNSTunnel
	if !s.Enabled || (rec.Protocol != flow.ProtocolUDP && rec.Protocol != flow.ProtocolTCP) {
		return detector.Ignored
	}

	var client, server netip.Addr
	var clientPort uint16
	request := false
	switch {
	case rec.DstPort == s.Port:
		client, server, clientPort, request = rec.SrcIP, rec.DstIP, rec.SrcPort, true
	case rec.SrcPort == s.Port:
		client, server, clientPort = rec.DstIP, rec.SrcIP, rec.DstPort
	default:
		return detector.Ignored
	}

	if rec.TimeLast.After(d.now) {
		d.now = rec.TimeLast
	}
	if env.Whitelist != nil && env.Whitelist.IsWhitelisted(client, server, clientPort, s.Port) {
		return detector.Unmatched
	}

	h, found := d.hosts.Get(client)
	if !found {
		if d.hosts.Len() >= env.Config.R.DNSTunnel.MaxHosts {
			d.refused++
			d.log.WithFields(log.Fields{
				"detector": d.Name(),
				"host":     client.String(),
				"limit":    env.Config.R.DNSTunnel.MaxHosts,
			}).Debug("Client limit reached, not tracking DNS client")
			return detector.Unmatched
		}
		h, _ = d.hosts.FindOrInsert(client)
		h.init(client, rec.TimeLast)
	}
	h.seen(rec.TimeLast)
	h.Servers[server] = struct{}{}

	if request {
		h.Requests.Observe(rec.BytesPerPacket())
		if rec.DNSName != "" {
			h.Domains.Insert(rec.DNSName)
		}
	} else {
		h.Responses.Observe(rec.BytesPerPacket())
	}
	return detector.Matched
}

// Tick classifies the clients once per check interval of flow time
func (d *Detector) Tick(env detector.Env, now time.Time) {
	if d.clock.Due(now, env.Config.S.DNSTunnel.CheckInterval) {
		d.Sweep(env, now)
	}
}

// Sweep classifies every client and deletes the idle ones. It returns
// the number of deleted clients.
func (d *Detector) Sweep(env detector.Env, now time.Time) int {
	s := &env.Config.S.DNSTunnel
	deleted := d.hosts.Sweep(func(_ netip.Addr, h *Host) bool {
		if now.Sub(h.LastSeen) > s.HostDeleteTimeout {
			if r := h.finish(now, s); r != nil {
				d.send(r)
			}
			return true
		}
		if r := h.check(now, s); r != nil {
			d.send(r)
		}
		return false
	})

	d.log.WithFields(log.Fields{
		"detector":      d.Name(),
		"deleted_hosts": deleted,
		"tracked_hosts": d.hosts.Len(),
	}).Debug("Swept DNS clients")
	return deleted
}

// Flush ends the attacks in progress when the configuration asks for
// final reports
func (d *Detector) Flush(env detector.Env, now time.Time) {
	if !env.Config.S.Output.FlushOnExit {
		return
	}
	if now.IsZero() {
		now = d.now
	}
	s := &env.Config.S.DNSTunnel
	d.hosts.Range(func(_ netip.Addr, h *Host) bool {
		if r := h.finish(now, s); r != nil {
			d.send(r)
		}
		return true
	})
}

func (d *Detector) send(r *report.Report) {
	if err := d.sender.Send(r); err != nil {
		d.log.WithFields(log.Fields{
			"detector": d.Name(),
			"host":     r.HostIP,
			"error":    err.Error(),
		}).Warn("Could not send report")
	}
}
