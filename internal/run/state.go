package run

import (
	"encoding/json"
	"fmt"
)

// State is the lifecycle state of a remote run, as reported by the platform.
//
// Runs move monotonically forward through the non-terminal states and leave
// them exactly once; the terminal states never transition again.
type State string

const (
	StateQueued       State = "queued"
	StateProvisioning State = "provisioning"
	StateRunning      State = "running"
	StateSaving       State = "saving"
	StatePushing      State = "pushing"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
	StateStopped      State = "stopped"
	StateInterrupted  State = "interrupted"
)

// states maps every known state to its ordering rank. Terminal states share
// the highest rank since no transition occurs between them.
var states = map[State]int{
	StateQueued:       0,
	StateProvisioning: 1,
	StateRunning:      2,
	StateSaving:       3,
	StatePushing:      4,
	StateComplete:     5,
	StateFailed:       5,
	StateStopped:      5,
	StateInterrupted:  5,
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	_, ok := states[s]
	return ok
}

// Terminal reports whether s is a final state from which no further
// transition occurs.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateFailed, StateStopped, StateInterrupted:
		return true
	default:
		return false
	}
}

// Before reports whether s orders strictly before other in the run
// lifecycle. Terminal states never order before anything.
func (s State) Before(other State) bool {
	return states[s] < states[other]
}

func (s State) String() string {
	return string(s)
}

// UnmarshalJSON rejects unknown state values so a misbehaving platform
// response fails loudly instead of flowing through as an open string.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	state := State(raw)
	if !state.Valid() {
		return fmt.Errorf("unknown run state %q", raw)
	}
	*s = state
	return nil
}
