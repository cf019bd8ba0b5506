package model

import (
	"time"
)

// EventStatus is the protocol lifecycle phase of a demand-response event.
type EventStatus string

const (
	StatusNone      EventStatus = "none"
	StatusFar       EventStatus = "far"
	StatusNear      EventStatus = "near"
	StatusActive    EventStatus = "active"
	StatusCompleted EventStatus = "completed"
	StatusCancelled EventStatus = "cancelled"
)

// String returns the wire representation of the status.
func (s EventStatus) String() string {
	if s == "" {
		return string(StatusNone)
	}
	return string(s)
}

// IsTerminal reports whether no further scheduled transition can follow s.
func (s EventStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// OptType is the decision a VEN returns for an offered event.
type OptType string

const (
	OptIn  OptType = "optIn"
	OptOut OptType = "optOut"
)

func (o OptType) String() string { return string(o) }

// ActivePeriod describes when an event is in effect.
type ActivePeriod struct {
	DTStart  time.Time     `json:"dtstart" validate:"required"`
	Duration time.Duration `json:"duration" validate:"gt=0"`
	// RampUpPeriod is the lead time before DTStart during which the event is near.
	RampUpPeriod *time.Duration `json:"ramp_up_period,omitempty" validate:"omitempty,gte=0"`
}

// End returns the instant the event completes.
func (p ActivePeriod) End() time.Time { return p.DTStart.Add(p.Duration) }

// RampUpStart returns the instant the event becomes near, if a ramp-up period is set.
func (p ActivePeriod) RampUpStart() (time.Time, bool) {
	if p.RampUpPeriod == nil {
		return time.Time{}, false
	}
	return p.DTStart.Add(-*p.RampUpPeriod), true
}

// EventDescriptor carries the identity and revision of an event.
type EventDescriptor struct {
	EventID            string      `json:"event_id" validate:"required"`
	ModificationNumber uint        `json:"modification_number"`
	EventStatus        EventStatus `json:"event_status" validate:"oneof=none far near active completed cancelled"`
	Priority           uint        `json:"priority,omitempty"`
	MarketContext      string      `json:"market_context,omitempty"`
	TestEvent          bool        `json:"test_event,omitempty"`
	CreatedAt          time.Time   `json:"created_date_time"`
}

// Interval is one slot of a signal. Payload values are not interpreted by the VTN.
type Interval struct {
	Duration time.Duration `json:"duration" validate:"gte=0"`
	Payload  float64       `json:"signal_payload"`
}

// EventSignal is the opaque instruction carried by an event.
type EventSignal struct {
	SignalName string     `json:"signal_name" validate:"required"`
	SignalType string     `json:"signal_type" validate:"required"`
	SignalID   string     `json:"signal_id,omitempty"`
	Intervals  []Interval `json:"intervals,omitempty" validate:"dive"`
}

// Target restricts an event to a subset of a VEN's resources.
type Target struct {
	VenID      string `json:"ven_id,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
	GroupID    string `json:"group_id,omitempty"`
}

// Event is a demand-response event offered to VENs.
type Event struct {
	Descriptor   EventDescriptor `json:"event_descriptor"`
	ActivePeriod ActivePeriod    `json:"active_period"`
	Signals      []EventSignal   `json:"event_signals,omitempty" validate:"dive"`
	Targets      []Target        `json:"targets,omitempty"`
}

// ID returns the event identifier.
func (e Event) ID() string { return e.Descriptor.EventID }

// Status returns the current lifecycle phase.
func (e Event) Status() EventStatus { return e.Descriptor.EventStatus }

// Clone returns a deep copy of e.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	if e.ActivePeriod.RampUpPeriod != nil {
		r := *e.ActivePeriod.RampUpPeriod
		c.ActivePeriod.RampUpPeriod = &r
	}
	if e.Signals != nil {
		c.Signals = make([]EventSignal, len(e.Signals))
		for i, s := range e.Signals {
			s.Intervals = append([]Interval(nil), s.Intervals...)
			c.Signals[i] = s
		}
	}
	if e.Targets != nil {
		c.Targets = append([]Target(nil), e.Targets...)
	}
	return &c
}

// EventResponse is one entry of a VEN's created-event acknowledgment.
type EventResponse struct {
	EventID            string  `json:"event_id" validate:"required"`
	OptType            OptType `json:"opt_type" validate:"oneof=optIn optOut"`
	ModificationNumber uint    `json:"modification_number,omitempty"`
	ResponseCode       int     `json:"response_code,omitempty"`
}
