// Package attack defines the states a tracked host moves through while it
// is suspected of attacking.
package attack

// State is the attack state of one tracked host
type State int

const (
	// NoAttack means the host is below every threshold
	NoAttack State = iota
	// NewAttack means the host just crossed the attack threshold
	NewAttack
	// ReportWait means the host is attacking but was reported recently
	ReportWait
	// MinEventsWait means the host keeps attacking at too low a rate to report
	MinEventsWait
	// Attack means the host is still attacking and a repeat report is due
	Attack
	// EndOfAttack means the attack ended without anything left to report
	EndOfAttack
	// ReportEndOfAttack means the attack ended and a final report is due
	ReportEndOfAttack
)

var stateNames = [...]string{
	NoAttack:          "no-attack",
	NewAttack:         "new-attack",
	ReportWait:        "report-wait",
	MinEventsWait:     "min-events-wait",
	Attack:            "attack",
	EndOfAttack:       "end-of-attack",
	ReportEndOfAttack: "report-end-of-attack",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// InAttack reports whether s belongs to the family of states held while
// an attack is in progress
func (s State) InAttack() bool {
	switch s {
	case NewAttack, ReportWait, MinEventsWait, Attack:
		return true
	}
	return false
}

// Emits reports whether entering s produces a report
func (s State) Emits() bool {
	switch s {
	case NewAttack, Attack, ReportEndOfAttack:
		return true
	}
	return false
}
