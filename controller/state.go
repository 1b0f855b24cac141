package controller

// State is the orchestrator lifecycle stage.
type State int32

const (
	// Uninitialized waits for a camera.
	Uninitialized State = iota
	// Ready may start a detection cycle on the next eligible tick.
	Ready
	// Detecting has one inference in flight.
	Detecting
	// Terminated ignores all further input.
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Detecting:
		return "detecting"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}
