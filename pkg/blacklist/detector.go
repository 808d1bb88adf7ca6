package blacklist

import (
	"net/netip"
	"sort"
	"time"

	"github.com/activecm/flowsentry/pkg/detector"
	"github.com/activecm/flowsentry/pkg/flow"
	"github.com/activecm/flowsentry/pkg/ipindex"
	"github.com/activecm/flowsentry/pkg/report"
	log "github.com/sirupsen/logrus"
)

// Entry is the traffic of one blacklisted address
type Entry struct {
	IP        netip.Addr
	Lists     []string
	FirstSeen time.Time
	LastSeen  time.Time
	// LastReport is zero until the first report
	LastReport time.Time

	Flows uint64
	Bytes uint64

	// counted since the last report
	pendingFlows uint64
	pendingBytes uint64
	peers        map[netip.Addr]struct{}
}

func (e *Entry) init(ip netip.Addr, now time.Time) {
	*e = Entry{
		IP:        ip,
		FirstSeen: now,
		LastSeen:  now,
		peers:     make(map[netip.Addr]struct{}),
	}
}

func (e *Entry) add(peer netip.Addr, lists []string, rec *flow.Record) {
	e.Lists = lists
	e.Flows++
	e.Bytes += rec.Bytes
	e.pendingFlows++
	e.pendingBytes += rec.Bytes
	e.peers[peer] = struct{}{}
	if rec.TimeLast.After(e.LastSeen) {
		e.LastSeen = rec.TimeLast
	}
}

// Pending returns the number of flows not reported yet
func (e *Entry) Pending() uint64 {
	return e.pendingFlows
}

// Detector reports the flows from and to blacklisted addresses
type Detector struct {
	entries *ipindex.Index[Entry]
	sender  report.Sender
	log     *log.Logger

	clock detector.Clock
	now   time.Time
}

// New creates a blacklist detector reporting through sender
func New(sender report.Sender, logger *log.Logger) *Detector {
	return &Detector{
		entries: ipindex.NewIndex[Entry](ipindex.DefaultOrder),
		sender:  sender,
		log:     logger,
	}
}

// Name returns blacklist
func (d *Detector) Name() string { return report.DetectorBlacklist }

// Tracked returns the number of blacklisted addresses seen recently
func (d *Detector) Tracked() int { return d.entries.Len() }

// Entry returns the traffic of a blacklisted address
func (d *Detector) Entry(ip netip.Addr) (*Entry, bool) {
	return d.entries.Get(ip)
}

// Process looks both ends of the flow up
func (d *Detector) Process(env detector.Env, rec *flow.Record) detector.Outcome {
	if !env.Config.S.Blacklist.Enabled || env.Blacklist == nil {
		return detector.Ignored
	}
	if rec.TimeLast.After(d.now) {
		d.now = rec.TimeLast
	}

	srcLists := env.Blacklist.Lookup(rec.SrcIP)
	dstLists := env.Blacklist.Lookup(rec.DstIP)
	if len(srcLists) == 0 && len(dstLists) == 0 {
		return detector.Ignored
	}
	if env.Whitelist != nil && env.Whitelist.IsWhitelisted(rec.SrcIP, rec.DstIP, rec.SrcPort, rec.DstPort) {
		return detector.Unmatched
	}

	if len(srcLists) > 0 {
		d.account(rec.SrcIP, rec.DstIP, srcLists, rec)
	}
	if len(dstLists) > 0 {
		d.account(rec.DstIP, rec.SrcIP, dstLists, rec)
	}
	return detector.Matched
}

func (d *Detector) account(listed, peer netip.Addr, lists []string, rec *flow.Record) {
	e, found := d.entries.FindOrInsert(listed)
	if !found {
		e.init(listed, rec.TimeLast)
	}
	e.add(peer, lists, rec)
}

// Tick reports and ages out entries once per check interval of flow time
func (d *Detector) Tick(env detector.Env, now time.Time) {
	if d.clock.Due(now, env.Config.S.Blacklist.CheckInterval) {
		d.Sweep(env, now)
	}
}

// Sweep reports every entry with new traffic whose report interval has
// passed, and deletes the entries idle for longer than the host delete
// timeout after reporting what is left of them.
func (d *Detector) Sweep(env detector.Env, now time.Time) int {
	s := &env.Config.S.Blacklist
	deleted := d.entries.Sweep(func(_ netip.Addr, e *Entry) bool {
		if now.Sub(e.LastSeen) > s.HostDeleteTimeout {
			if e.pendingFlows > 0 {
				d.report(e, now, true)
			}
			return true
		}
		if e.pendingFlows > 0 && (e.LastReport.IsZero() || now.Sub(e.LastReport) >= s.ReportInterval) {
			d.report(e, now, false)
		}
		return false
	})

	d.log.WithFields(log.Fields{
		"detector":        d.Name(),
		"deleted_entries": deleted,
		"tracked_entries": d.entries.Len(),
	}).Debug("Swept blacklisted addresses")
	return deleted
}

// Flush reports the traffic not reported yet
func (d *Detector) Flush(env detector.Env, now time.Time) {
	if !env.Config.S.Output.FlushOnExit {
		return
	}
	if now.IsZero() {
		now = d.now
	}
	d.entries.Range(func(_ netip.Addr, e *Entry) bool {
		if e.pendingFlows > 0 {
			d.report(e, now, true)
		}
		return true
	})
}

func (d *Detector) report(e *Entry, now time.Time, end bool) {
	peers := make([]netip.Addr, 0, len(e.peers))
	for p := range e.peers {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Less(peers[j]) })

	r := report.New(report.DetectorBlacklist, report.ClassBlacklisted, e.IP, 0, now, int(e.pendingFlows), end, peers)
	r.Detail = map[string]interface{}{
		"lists":       e.Lists,
		"bytes":       e.pendingBytes,
		"total_flows": e.Flows,
		"total_bytes": e.Bytes,
		"first_seen":  e.FirstSeen,
	}

	e.LastReport = now
	e.pendingFlows, e.pendingBytes = 0, 0
	e.peers = make(map[netip.Addr]struct{})

	if err := d.sender.Send(r); err != nil {
		d.log.WithFields(log.Fields{
			"detector": d.Name(),
			"host":     r.HostIP,
			"error":    err.Error(),
		}).Warn("Could not send report")
	}
}

