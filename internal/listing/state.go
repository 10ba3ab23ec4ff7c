package listing

import "fmt"

// State is the lifecycle of one query key's cache entry.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetching:
		return "FETCHING"
	case StateReady:
		return "READY"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var transitions = map[State][]State{
	StateIdle:     {StateFetching},
	StateFetching: {StateReady, StateError},
	StateReady:    {StateFetching},
	StateError:    {StateFetching},
}

func transition(from, to State) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("invalid listing transition %s -> %s", from, to)
}
