package models

// State is the single lifecycle state of an edit session.
type State int

const (
	StateIdle State = iota
	StateEditing
	StateValidating
	StateScheduled
	StateSaving
	StateSaved
	StateConflict
	StateError
	StateOffline
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateEditing:    "editing",
	StateValidating: "validating",
	StateScheduled:  "scheduled",
	StateSaving:     "saving",
	StateSaved:      "saved",
	StateConflict:   "conflict",
	StateError:      "error",
	StateOffline:    "offline",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Settled reports whether the session has no pending work: nothing is
// scheduled or in flight.
func (s State) Settled() bool {
	switch s {
	case StateIdle, StateSaved, StateConflict, StateError, StateOffline:
		return true
	default:
		return false
	}
}

// Terminal reports whether the field is in sync with the store.
func (s State) Terminal() bool {
	return s == StateIdle || s == StateSaved
}
