package raffle

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the lifecycle state of a raffle. It is never stored; StateAt
// derives it from the persisted fields and the current time.
type State int32

const (
	// StateUnknown indicates an unparsed or invalid state.
	StateUnknown State = iota

	// StateCreated indicates ticket sales have not opened yet.
	StateCreated

	// StateStarted indicates tickets can be bought.
	StateStarted

	// StateClosed indicates sales ended and randomness is pending.
	StateClosed

	// StateFinished indicates randomness arrived and the raffle awaits finalize.
	StateFinished

	// StateClaimed indicates winners were chosen and transfers emitted.
	StateClaimed

	// StateCancelled indicates the owner withdrew the raffle.
	StateCancelled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateClosed:
		return "closed"
	case StateFinished:
		return "finished"
	case StateClaimed:
		return "claimed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *State) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseState(str)
	return nil
}

// ParseState converts a string to State.
func ParseState(s string) State {
	switch s {
	case "created":
		return StateCreated
	case "started":
		return StateStarted
	case "closed":
		return StateClosed
	case "finished":
		return StateFinished
	case "claimed":
		return StateClaimed
	case "cancelled", "canceled":
		return StateCancelled
	default:
		return StateUnknown
	}
}

// IsTerminal returns true if no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateClaimed || s == StateCancelled
}

// StateAt derives the state of r at now.
func StateAt(now time.Time, cfg Config, r Raffle) State {
	end := r.Options.End()
	switch {
	case r.IsCancelled:
		return StateCancelled
	case now.Before(r.Options.Start):
		return StateCreated
	case now.Before(end):
		return StateStarted
	case len(r.Winners) > 0:
		// a raffle without tickets settles with no randomness
		return StateClaimed
	case now.Before(end.Add(cfg.RandomnessTimeout)) || r.Randomness == nil:
		return StateClosed
	default:
		return StateFinished
	}
}
