package sequencer

import "fmt"

type State int

const (
	StateIdle State = iota
	StateReading
	StateTransitioning
)

// stateRestore is a transition target meaning "back to Reading if a chapter
// is loaded, otherwise Idle".
const stateRestore State = -1

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateTransitioning:
		return "transitioning"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type EventKind int

const (
	EventSelect EventKind = iota
	EventLoaded
	EventLoadFailed
	EventPlay
	EventPlaybackEnded
	EventExit
)

func (k EventKind) String() string {
	switch k {
	case EventSelect:
		return "select"
	case EventLoaded:
		return "loaded"
	case EventLoadFailed:
		return "load-failed"
	case EventPlay:
		return "play"
	case EventPlaybackEnded:
		return "playback-ended"
	case EventExit:
		return "exit"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// transitions maps each event to the states it is legal in and the state it
// leads to. Anything missing is rejected with ErrInvalidTransition.
var transitions = map[EventKind]map[State]State{
	EventSelect: {
		StateIdle:          StateTransitioning,
		StateReading:       StateTransitioning,
		StateTransitioning: StateTransitioning,
	},
	EventLoaded: {
		StateTransitioning: StateReading,
	},
	EventLoadFailed: {
		StateTransitioning: stateRestore,
	},
	EventPlay: {
		StateReading: StateReading,
	},
	EventPlaybackEnded: {
		StateReading:       StateReading,
		StateTransitioning: StateTransitioning,
	},
	EventExit: {
		StateIdle:          StateIdle,
		StateReading:       StateIdle,
		StateTransitioning: StateIdle,
	},
}
