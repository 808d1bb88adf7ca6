// Package host implements the per attacker aggregation of the brute force
// detector: one window of recent flows per direction and the attack state
// machine evaluated over them.
package host

import (
	"net/netip"
	"sort"
	"time"

	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/pkg/attack"
	"github.com/activecm/flowsentry/pkg/signature"
	"github.com/activecm/flowsentry/pkg/window"
)

// Alert is produced by the transitions that report
type Alert struct {
	State       attack.State
	Intensity   int
	Victims     []netip.Addr
	EndOfAttack bool
	Time        time.Time
}

// Host is one suspected attacker of one service
type Host struct {
	IP           netip.Addr
	FirstSeen    time.Time
	LastReceived time.Time
	// LastReportTime is zero while the host is not reported
	LastReportTime time.Time
	State          attack.State

	Incoming *window.Window
	Outgoing *window.Window
}

// Init prepares a freshly allocated host
func (h *Host) Init(ip netip.Addr, now time.Time, listSize int) {
	*h = Host{
		IP:           ip,
		FirstSeen:    now,
		LastReceived: now,
		State:        attack.NoAttack,
		Incoming:     window.New(listSize),
		Outgoing:     window.New(listSize),
	}
}

// Reported tells whether an attack of the host was reported and not
// ended yet
func (h *Host) Reported() bool {
	return !h.LastReportTime.IsZero()
}

func (h *Host) window(dir signature.Direction) *window.Window {
	if dir == signature.Outgoing {
		return h.Outgoing
	}
	return h.Incoming
}

// AddRecord appends one evaluated flow to the window of its direction.
// The window follows a reloaded list size.
func (h *Host) AddRecord(dir signature.Direction, rec window.Record, listSize int) {
	w := h.window(dir)
	if w.Capacity() != listSize {
		w.Resize(listSize)
	}
	w.Add(rec, h.Reported())
	if rec.LastSeen.After(h.LastReceived) {
		h.LastReceived = rec.LastSeen
	}
}

// SweepRecords evicts the records older than the record timeout
func (h *Host) SweepRecords(now time.Time, s *config.ProtocolStaticCfg) int {
	return h.Incoming.EvictExpired(now, s.RecordTimeout) + h.Outgoing.EvictExpired(now, s.RecordTimeout)
}

// Idle tells whether the host sent nothing for longer than the host
// delete timeout
func (h *Host) Idle(now time.Time, s *config.ProtocolStaticCfg) bool {
	return now.Sub(h.LastReceived) > s.HostDeleteTimeout
}

// ListThreshold returns the matched flow count at which a host with the
// given window lengths is considered attacking. Short windows use the
// fixed threshold, longer ones a 90% bar of the longer window.
func ListThreshold(s *config.ProtocolStaticCfg, incomingLen, outgoingLen int) float64 {
	bottom := s.ListSizeBottomThreshold
	if incomingLen <= bottom || outgoingLen <= bottom {
		return float64(s.ListThreshold)
	}
	larger := incomingLen
	if outgoingLen > larger {
		larger = outgoingLen
	}
	if larger < 100 {
		return float64(larger%100) * 0.9
	}
	return float64((larger / 100) * 90)
}

// CheckForAttack runs one step of the attack state machine. now is the
// time of the latest flow seen by the detector. The returned alert is
// non-nil exactly for the states that report.
func (h *Host) CheckForAttack(now time.Time, s *config.ProtocolStaticCfg) (attack.State, *Alert) {
	if !h.State.InAttack() {
		threshold := ListThreshold(s, h.Incoming.Len(), h.Outgoing.Len())
		if float64(h.Incoming.MatchedCount()) >= threshold || float64(h.Outgoing.MatchedCount()) >= threshold {
			h.Incoming.SeedAttackStart()
			h.Outgoing.SeedAttackStart()
			alert := &Alert{
				State:     attack.NewAttack,
				Intensity: max(h.Incoming.MatchedCount(), h.Outgoing.MatchedCount()),
				Victims:   union(h.Incoming.CounterpartsSinceAttackStart(), h.Outgoing.CounterpartsSinceAttackStart()),
				Time:      now,
			}
			h.markReported(now)
			h.State = attack.NewAttack
			return h.State, alert
		}
		h.State = attack.NoAttack
		return h.State, nil
	}

	if now.Sub(h.LastReportTime) < s.ReportTimeout {
		h.State = attack.ReportWait
		return h.State, nil
	}

	incScale, incTotal := h.Incoming.MatchedSinceReport(), h.Incoming.TotalSinceReport()
	outScale, outTotal := h.Outgoing.MatchedSinceReport(), h.Outgoing.TotalSinceReport()

	if incScale == 0 && outScale == 0 && h.Incoming.MatchedCount() == 0 && h.Outgoing.MatchedCount() == 0 {
		h.endAttack()
		h.State = attack.EndOfAttack
		return h.State, nil
	}

	enoughEvents := incScale >= s.MinEventsToReport || outScale >= s.MinEventsToReport
	if percent(incScale, incTotal) < s.MinRatioToKeepTracking && percent(outScale, outTotal) < s.MinRatioToKeepTracking {
		if !enoughEvents {
			h.endAttack()
			h.State = attack.EndOfAttack
			return h.State, nil
		}
		alert := h.sinceReportAlert(attack.ReportEndOfAttack, now)
		alert.EndOfAttack = true
		h.endAttack()
		h.State = attack.ReportEndOfAttack
		return h.State, alert
	}

	if !enoughEvents {
		h.State = attack.MinEventsWait
		return h.State, nil
	}
	alert := h.sinceReportAlert(attack.Attack, now)
	h.markReported(now)
	h.State = attack.Attack
	return h.State, alert
}

// Finish ends the tracking of the host, as done before it is deleted or
// when the detector stops. A host in an attack gets a final end of
// attack alert.
func (h *Host) Finish(now time.Time) *Alert {
	if !h.State.InAttack() {
		return nil
	}
	alert := h.sinceReportAlert(attack.ReportEndOfAttack, now)
	alert.EndOfAttack = true
	h.endAttack()
	h.State = attack.ReportEndOfAttack
	return alert
}

func (h *Host) sinceReportAlert(state attack.State, now time.Time) *Alert {
	return &Alert{
		State:     state,
		Intensity: max(h.Incoming.MatchedSinceReport(), h.Outgoing.MatchedSinceReport()),
		Victims:   union(h.Incoming.CounterpartsSinceReport(), h.Outgoing.CounterpartsSinceReport()),
		Time:      now,
	}
}

func (h *Host) markReported(now time.Time) {
	h.LastReportTime = now
	h.Incoming.ResetSinceReport()
	h.Outgoing.ResetSinceReport()
}

func (h *Host) endAttack() {
	h.LastReportTime = time.Time{}
	h.Incoming.Clear()
	h.Outgoing.Clear()
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}

// union merges two address sorted lists without duplicates
func union(a, b []netip.Addr) []netip.Addr {
	out := make([]netip.Addr, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })

	uniq := out[:0]
	for _, addr := range out {
		if len(uniq) == 0 || addr != uniq[len(uniq)-1] {
			uniq = append(uniq, addr)
		}
	}
	return uniq
}
