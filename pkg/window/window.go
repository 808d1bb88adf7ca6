// Package window implements the bounded, insertion ordered record list
// kept for one direction of one tracked host.
package window

import (
	"net/netip"
	"sort"
	"time"
)

// Record is the outcome of evaluating one flow against a signature
type Record struct {
	Counterpart netip.Addr
	LastSeen    time.Time
	Matched     bool
}

// Window holds at most Capacity records in arrival order. Adding to a
// full window evicts the oldest record first.
type Window struct {
	capacity int

	// ring buffer, grown on demand up to capacity
	buf  []Record
	head int
	n    int

	matchedCount       int
	matchedSinceReport int
	totalSinceReport   int

	sinceReport      map[netip.Addr]struct{}
	sinceAttackStart map[netip.Addr]struct{}
}

// New creates an empty window holding up to capacity records
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		capacity:         capacity,
		sinceReport:      make(map[netip.Addr]struct{}),
		sinceAttackStart: make(map[netip.Addr]struct{}),
	}
}

// Len returns the number of records held
func (w *Window) Len() int { return w.n }

// Capacity returns the maximum number of records held
func (w *Window) Capacity() int { return w.capacity }

// MatchedCount returns the number of held records that matched
func (w *Window) MatchedCount() int { return w.matchedCount }

// MatchedSinceReport returns the matched records added since the last report
func (w *Window) MatchedSinceReport() int { return w.matchedSinceReport }

// TotalSinceReport returns the records added since the last report
func (w *Window) TotalSinceReport() int { return w.totalSinceReport }

// At returns the i-th oldest record
func (w *Window) At(i int) Record {
	return w.buf[(w.head+i)%len(w.buf)]
}

// Add appends rec, evicting the oldest record if the window is full.
// The since-report counters and counterpart sets only move once the
// owning host has been reported.
func (w *Window) Add(rec Record, hostReported bool) {
	if w.n == w.capacity {
		w.popFront()
	}
	w.pushBack(rec)

	if rec.Matched {
		w.matchedCount++
	}
	if hostReported {
		w.totalSinceReport++
		if rec.Matched {
			w.matchedSinceReport++
			w.sinceReport[rec.Counterpart] = struct{}{}
			w.sinceAttackStart[rec.Counterpart] = struct{}{}
		}
	}
}

// EvictExpired drops records from the front whose LastSeen is more than
// timeout before now. Records arrive in time order so eviction stops at
// the first record that is still fresh. It returns the number of
// evicted records.
func (w *Window) EvictExpired(now time.Time, timeout time.Duration) int {
	evicted := 0
	for w.n > 0 && now.Sub(w.buf[w.head].LastSeen) > timeout {
		w.popFront()
		evicted++
	}
	return evicted
}

// Clear drops every record and resets every counter and set
func (w *Window) Clear() {
	w.buf = nil
	w.head, w.n = 0, 0
	w.matchedCount = 0
	w.ResetSinceReport()
	w.sinceAttackStart = make(map[netip.Addr]struct{})
}

// ResetSinceReport zeroes the counters and the counterpart set that
// accumulate between two reports
func (w *Window) ResetSinceReport() {
	w.matchedSinceReport = 0
	w.totalSinceReport = 0
	w.sinceReport = make(map[netip.Addr]struct{})
}

// SeedAttackStart fills the attack start set from the matched records
// currently held
func (w *Window) SeedAttackStart() {
	for i := 0; i < w.n; i++ {
		if rec := w.At(i); rec.Matched {
			w.sinceAttackStart[rec.Counterpart] = struct{}{}
		}
	}
}

// CounterpartsSinceReport returns the distinct matched counterparts seen
// since the last report in address order
func (w *Window) CounterpartsSinceReport() []netip.Addr {
	return sortedAddrs(w.sinceReport)
}

// CounterpartsSinceAttackStart returns the distinct matched counterparts
// seen since the attack started in address order
func (w *Window) CounterpartsSinceAttackStart() []netip.Addr {
	return sortedAddrs(w.sinceAttackStart)
}

// Resize changes the capacity, dropping the oldest records if the window
// holds more than the new capacity
func (w *Window) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	for w.n > capacity {
		w.popFront()
	}
	w.capacity = capacity
	if len(w.buf) > capacity {
		w.regrow(capacity)
	}
}

func (w *Window) pushBack(rec Record) {
	if w.n == len(w.buf) {
		size := len(w.buf) * 2
		if size < 8 {
			size = 8
		}
		if size > w.capacity {
			size = w.capacity
		}
		w.regrow(size)
	}
	w.buf[(w.head+w.n)%len(w.buf)] = rec
	w.n++
}

func (w *Window) popFront() {
	if w.buf[w.head].Matched {
		w.matchedCount--
	}
	w.buf[w.head] = Record{}
	w.head = (w.head + 1) % len(w.buf)
	w.n--
}

// regrow copies the held records to the front of a buffer of the given size
func (w *Window) regrow(size int) {
	buf := make([]Record, size)
	for i := 0; i < w.n; i++ {
		buf[i] = w.At(i)
	}
	w.buf, w.head = buf, 0
}

func sortedAddrs(set map[netip.Addr]struct{}) []netip.Addr {
	out := make([]netip.Addr, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
