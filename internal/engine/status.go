package engine

import "strings"

// State is the engine lifecycle position. Transitions only move forward
// through Starting and Stopping; there is no pause or restart-in-place.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Status reports what the engine is actually providing right now. A
// subsystem that failed to come up leaves its flag false while the engine
// keeps running with whatever remains.
type Status struct {
	State     State
	Discovery bool
	Transport bool
	Storage   bool
	Detail    string
}

func buildDetail(state State, discovery, transport, storage bool) string {
	if state != StateRunning {
		return state.String()
	}
	var down []string
	if !discovery {
		down = append(down, "discovery off")
	}
	if !transport {
		down = append(down, "transport off")
	}
	if !storage {
		down = append(down, "storage off")
	}
	if len(down) == 0 {
		return "running"
	}
	return "degraded: " + strings.Join(down, ", ")
}
