package reconnect

import "time"

// EventKind identifies a step of the recovery state machine.
type EventKind string

const (
	EventDisconnected EventKind = "disconnected"
	EventReconnecting EventKind = "reconnecting"
	EventReconnected  EventKind = "reconnected"
	EventFailed       EventKind = "failed"
)

// Event describes one transition, delivered to the SetOnEvent callback.
type Event struct {
	Kind EventKind `json:"kind"`

	// Attempt is the backed-off retry number for EventReconnecting, and the
	// total number of create calls for EventReconnected and EventFailed.
	Attempt uint32 `json:"attempt,omitempty"`

	// MaxAttempts is the configured retry budget.
	MaxAttempts uint32 `json:"max_attempts"`

	// Reason is the error that caused the disconnect or the final failure.
	Reason string `json:"reason,omitempty"`

	At time.Time `json:"at"`
}

// State is the wrapper's position in the recovery state machine.
type State int32

const (
	StateConnected State = iota
	StateReconnecting
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
