// Package detector holds what the stream loop and the individual
// detectors share.
package detector

import (
	"net/netip"
	"time"

	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/pkg/flow"
)

// Whitelist exempts communications from detection
type Whitelist interface {
	IsWhitelisted(src, dst netip.Addr, sport, dport uint16) bool
}

// Blacklist names the lists an address is on
type Blacklist interface {
	Lookup(addr netip.Addr) []string
}

// Env is the snapshot of the reloadable state a detector sees while it
// handles one flow or one tick. It is loaded again between flows.
type Env struct {
	Config    *config.Config
	Whitelist Whitelist
	Blacklist Blacklist
}

// Outcome is what a detector did with one flow
type Outcome int

const (
	// Ignored flows are not relevant to the detector
	Ignored Outcome = iota
	// Scan flows were dropped as bare port scan probes
	Scan
	// Unmatched flows were counted without matching the signature
	Unmatched
	// Matched flows matched the signature
	Matched
)

var outcomeNames = [...]string{"ignored", "scan", "unmatched", "matched"}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// Detector consumes flows in arrival order. A Detector is driven by a
// single goroutine; none of its methods may run concurrently.
type Detector interface {
	// Name identifies the detector in logs and metrics
	Name() string
	// Process handles one flow
	Process(env Env, rec *flow.Record) Outcome
	// Tick runs the periodic checks that are due at flow time now
	Tick(env Env, now time.Time)
	// Flush ends every tracked attack before the detector stops
	Flush(env Env, now time.Time)
	// Tracked returns the number of tracked hosts
	Tracked() int
}

// Clock decides when a periodic check is due. It runs on flow time so
// replayed traffic sweeps exactly like live traffic.
type Clock struct {
	last time.Time
}

// Due reports whether interval has passed since the last due time. The
// first call only starts the clock.
func (c *Clock) Due(now time.Time, interval time.Duration) bool {
	if c.last.IsZero() {
		c.last = now
		return false
	}
	if now.Sub(c.last) < interval {
		return false
	}
	c.last = now
	return true
}
