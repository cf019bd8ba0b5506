package events

import (
	"time"

	"github.com/kilianp07/vtn/core/model"
)

// Decision sources describe where an acknowledged event was found.
const (
	SourcePending  = "pending"
	SourceRunning  = "running"
	SourceUnknown  = "unknown"
	SourceExternal = "external"
)

// OfferedEvent is published when an event is registered pending for a VEN.
type OfferedEvent struct {
	VenID string
	Event model.Event
	Time  time.Time
}

// RequestEvent is published after each oadrRequestEvent.
type RequestEvent struct {
	VenID   string
	Events  int
	Latency time.Duration
	Err     error
	Time    time.Time
}

// DecisionEvent is published for every entry of an oadrCreatedEvent.
type DecisionEvent struct {
	VenID   string
	EventID string
	OptType model.OptType
	Source  string
	Err     error
	Time    time.Time
}

// TransitionEvent is published when an event changes status.
type TransitionEvent struct {
	VenID              string
	EventID            string
	From               model.EventStatus
	To                 model.EventStatus
	ModificationNumber uint
	Time               time.Time
}

// QueueDropEvent is published when an event could not be enqueued for a VEN.
type QueueDropEvent struct {
	VenID   string
	EventID string
	Err     error
	Time    time.Time
}
