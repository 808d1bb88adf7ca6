// Package bruteforce detects login brute forcing against SSH, RDP and
// TELNET. One Detector watches one service.
package bruteforce

import (
	"net/netip"
	"strings"
	"time"

	"github.com/activecm/flowsentry/pkg/detector"
	"github.com/activecm/flowsentry/pkg/flow"
	"github.com/activecm/flowsentry/pkg/host"
	"github.com/activecm/flowsentry/pkg/ipindex"
	"github.com/activecm/flowsentry/pkg/report"
	"github.com/activecm/flowsentry/pkg/signature"
	"github.com/activecm/flowsentry/pkg/window"
	log "github.com/sirupsen/logrus"
)

// Detector tracks the suspected attackers of one service
type Detector struct {
	proto  *signature.Protocol
	hosts  *ipindex.Index[host.Host]
	sender report.Sender
	log    *log.Logger

	clock   detector.Clock
	now     time.Time
	refused int
}

// New creates a detector for proto reporting through sender
func New(proto *signature.Protocol, sender report.Sender, logger *log.Logger) *Detector {
	return &Detector{
		proto:  proto,
		hosts:  ipindex.NewIndex[host.Host](ipindex.DefaultOrder),
		sender: sender,
		log:    logger,
	}
}

// Name returns bruteforce/<service>
func (d *Detector) Name() string {
	return "bruteforce/" + strings.ToLower(d.proto.Name)
}

// Tracked returns the number of tracked attackers
func (d *Detector) Tracked() int {
	return d.hosts.Len()
}

// Refused returns how many new attackers were not tracked because the
// host limit was reached
func (d *Detector) Refused() int {
	return d.refused
}

// Host returns the tracked state of an attacker
func (d *Detector) Host(ip netip.Addr) (*host.Host, bool) {
	return d.hosts.Get(ip)
}

// Range calls fn for every tracked attacker in address order
func (d *Detector) Range(fn func(*host.Host) bool) {
	d.hosts.Range(func(_ netip.Addr, h *host.Host) bool {
		return fn(h)
	})
}

// Process evaluates one flow. Scan probes are dropped before they reach
// a window, and a host is only created by a matching flow.
func (d *Detector) Process(env detector.Env, rec *flow.Record) detector.Outcome {
	settings := d.proto.Settings(env.Config)
	if !env.Config.S.BruteForce.Enabled || !settings.Enabled || rec.Protocol != flow.ProtocolTCP {
		return detector.Ignored
	}

	dir, attacker, victim, ok := signature.Resolve(rec, d.proto.Port)
	if !ok {
		return detector.Ignored
	}
	if rec.TimeLast.After(d.now) {
		d.now = rec.TimeLast
	}

	if signature.IsScan(rec.Packets, rec.TCPFlags) {
		return detector.Scan
	}

	matched := d.proto.Match(env.Config, env.Whitelist, rec, dir)
	outcome := detector.Unmatched
	if matched {
		outcome = detector.Matched
	}

	h, found := d.hosts.Get(attacker)
	if !found {
		if !matched {
			return outcome
		}
		if d.hosts.Len() >= env.Config.R.BruteForce.MaxHosts {
			d.refused++
			d.log.WithFields(log.Fields{
				"detector": d.Name(),
				"host":     attacker.String(),
				"limit":    env.Config.R.BruteForce.MaxHosts,
			}).Debug("Host limit reached, not tracking attacker")
			return outcome
		}
		h, _ = d.hosts.FindOrInsert(attacker)
		h.Init(attacker, rec.TimeLast, settings.ListSize)
	}

	h.AddRecord(dir, window.Record{Counterpart: victim, LastSeen: rec.TimeLast, Matched: matched}, settings.ListSize)
	if _, alert := h.CheckForAttack(rec.TimeLast, settings); alert != nil {
		d.emit(h, alert)
	}
	return outcome
}

// Tick sweeps the tracked hosts once per check interval of flow time
func (d *Detector) Tick(env detector.Env, now time.Time) {
	settings := d.proto.Settings(env.Config)
	if d.clock.Due(now, settings.CheckInterval) {
		d.Sweep(env, now)
	}
}

// Sweep visits every tracked host once. Hosts idle for longer than the
// host delete timeout are finished and deleted, the others drop their
// expired records and run the state machine. It returns the number of
// deleted hosts.
func (d *Detector) Sweep(env detector.Env, now time.Time) int {
	settings := d.proto.Settings(env.Config)

	deleted := d.hosts.Sweep(func(_ netip.Addr, h *host.Host) bool {
		if h.Idle(now, settings) {
			if alert := h.Finish(now); alert != nil {
				d.emit(h, alert)
			}
			return true
		}
		h.SweepRecords(now, settings)
		if _, alert := h.CheckForAttack(now, settings); alert != nil {
			d.emit(h, alert)
		}
		return false
	})

	profiles := 0
	if d.proto.Profiles != nil {
		profiles = d.proto.Profiles.Sweep(now, settings.HostDeleteTimeout)
	}

	d.log.WithFields(log.Fields{
		"detector":         d.Name(),
		"deleted_hosts":    deleted,
		"tracked_hosts":    d.hosts.Len(),
		"deleted_profiles": profiles,
	}).Debug("Swept tracked hosts")
	return deleted
}

// Flush ends every attack in progress. Unless the configuration asks
// for the final reports they are dropped.
func (d *Detector) Flush(env detector.Env, now time.Time) {
	if now.IsZero() {
		now = d.now
	}

	flush := env.Config.S.Output.FlushOnExit
	dropped := 0
	d.hosts.Range(func(_ netip.Addr, h *host.Host) bool {
		alert := h.Finish(now)
		if alert == nil {
			return true
		}
		if flush {
			d.emit(h, alert)
		} else {
			dropped++
		}
		return true
	})

	if dropped > 0 {
		d.log.WithFields(log.Fields{
			"detector": d.Name(),
			"dropped":  dropped,
		}).Info("Dropped final reports of attacks in progress")
	}
}

func (d *Detector) emit(h *host.Host, alert *host.Alert) {
	r := report.New(report.DetectorBruteForce, report.ClassBruteForce, h.IP, d.proto.Port,
		alert.Time, alert.Intensity, alert.EndOfAttack, alert.Victims)
	r.Protocol = d.proto.Name
	r.Detail = map[string]interface{}{
		"state":      alert.State.String(),
		"first_seen": h.FirstSeen,
	}

	if err := d.sender.Send(r); err != nil {
		d.log.WithFields(log.Fields{
			"detector": d.Name(),
			"host":     r.HostIP,
			"error":    err.Error(),
		}).Warn("Could not send report")
	}
}
