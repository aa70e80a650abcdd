// Package focus implements the per-session attention state machine:
// a sliding-window smoother over raw per-frame classifications and an
// interval accumulator that accounts wall-clock time into focused and
// unfocused buckets.
package focus

import "fmt"

// State is the smoothed attention state of a viewer.
type State int

const (
	// Unfocused is the initial state of every session.
	Unfocused State = iota
	// Focused means the smoothed signal says the viewer is looking at the content.
	Focused
)

// StateOf maps a smoothed boolean onto a State.
func StateOf(focused bool) State {
	if focused {
		return Focused
	}
	return Unfocused
}

// String returns the wire label of the state.
func (s State) String() string {
	switch s {
	case Focused:
		return "focused"
	case Unfocused:
		return "unfocused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "focused":
		*s = Focused
	case "unfocused":
		*s = Unfocused
	default:
		return fmt.Errorf("focus: unknown state %q", text)
	}
	return nil
}
