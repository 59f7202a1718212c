// Package conversation holds the per-user dialogue state of the bot and the
// pure transition function that drives it.
package conversation

// State is where a user is in the lookup dialogue.
type State string

// Dialogue states.
const (
	StateStart                   State = "start"
	StateAwaitingLocation        State = "awaiting_location"
	StateAwaitingLocationNumbers State = "awaiting_location_numbers"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateStart, StateAwaitingLocation, StateAwaitingLocationNumbers:
		return true
	default:
		return false
	}
}

// Awaiting reports whether the next free text is a lookup.
func (s State) Awaiting() bool {
	return s == StateAwaitingLocation || s == StateAwaitingLocationNumbers
}

// Event is an input that may move a user between states.
type Event int

// Dialogue events.
const (
	EventStart Event = iota
	EventNumber
	EventNumbers
	EventText
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventNumber:
		return "number"
	case EventNumbers:
		return "numbers"
	case EventText:
		return "text"
	default:
		return "unknown"
	}
}

// Next returns the state after event. Free text always returns to start,
// so every awaiting state allows exactly one lookup attempt.
func Next(current State, event Event) State {
	switch event {
	case EventNumber:
		return StateAwaitingLocation
	case EventNumbers:
		return StateAwaitingLocationNumbers
	case EventStart, EventText:
		return StateStart
	default:
		if current.Valid() {
			return current
		}
		return StateStart
	}
}
