package metrics

import (
	"time"
)

// TransitionRecord is a status change of an event.
type TransitionRecord struct {
	VenID              string
	EventID            string
	From               string
	To                 string
	ModificationNumber uint
	Time               time.Time
}

// MetricsSink records event status transitions.
type MetricsSink interface {
	RecordTransition(rec TransitionRecord) error
}

// DecisionRecord is one processed entry of an oadrCreatedEvent.
type DecisionRecord struct {
	VenID   string
	EventID string
	OptType string
	Source  string
	Error   string
	Time    time.Time
}

// DecisionRecorder records VEN decisions.
type DecisionRecorder interface {
	RecordDecision(rec DecisionRecord) error
}

// RequestRecord is one oadrRequestEvent.
type RequestRecord struct {
	VenID   string
	Events  int
	Latency time.Duration
	Error   string
	Time    time.Time
}

// RequestRecorder records event requests.
type RequestRecorder interface {
	RecordRequest(rec RequestRecord) error
}

// OfferRecord is an event offered to a VEN.
type OfferRecord struct {
	VenID    string
	EventID  string
	Priority uint
	Time     time.Time
}

// OfferRecorder records offered events.
type OfferRecorder interface {
	RecordOffer(rec OfferRecord) error
}

// QueueDropRecord is a push that could not be enqueued.
type QueueDropRecord struct {
	VenID   string
	EventID string
	Reason  string
	Time    time.Time
}

// QueueDropRecorder records dropped pushes.
type QueueDropRecorder interface {
	RecordQueueDrop(rec QueueDropRecord) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordTransition(TransitionRecord) error { return nil }
func (NopSink) RecordDecision(DecisionRecord) error     { return nil }
func (NopSink) RecordRequest(RequestRecord) error       { return nil }
func (NopSink) RecordOffer(OfferRecord) error           { return nil }
func (NopSink) RecordQueueDrop(QueueDropRecord) error   { return nil }
