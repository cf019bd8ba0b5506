package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/vtn/core/events"
	"github.com/kilianp07/vtn/core/logger"
	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/core/queue"
	"github.com/kilianp07/vtn/internal/eventbus"
)

// Transition is an armed status change for one event.
type Transition struct {
	VenID   string
	EventID string
	Target  model.EventStatus
	FireAt  time.Time
	Delay   time.Duration

	seq    int
	handle Handle
}

// Scheduler arms and applies status transitions.
type Scheduler struct {
	timer Timer
	exec  Executor
	queue queue.OutboundQueue
	bus   eventbus.Publisher
	log   logger.Logger

	mu    sync.Mutex
	seq   int
	armed map[string]map[int]*Transition

	// OnTerminal, when set, runs after an event reaches completed or
	// cancelled. It is called on the executor's loop.
	OnTerminal func(venID string, ev *model.Event)
}

// New creates a Scheduler. A nil timer defaults to RealTimer and a nil
// executor defaults to a Serial one.
func New(timer Timer, exec Executor, q queue.OutboundQueue, bus eventbus.Publisher, log logger.Logger) (*Scheduler, error) {
	if q == nil {
		return nil, fmt.Errorf("scheduler: nil outbound queue")
	}
	if timer == nil {
		timer = RealTimer{}
	}
	if exec == nil {
		exec = &Serial{}
	}
	return &Scheduler{
		timer: timer,
		exec:  exec,
		queue: q,
		bus:   bus,
		log:   logger.OrNop(log),
		armed: make(map[string]map[int]*Transition),
	}, nil
}

// ScheduleTransitions arms the transitions that apply to ev given its current
// status, relative to now:
//   - far with a ramp-up period: near at dtstart - ramp_up_period
//   - far or near: active at dtstart
//   - far, near or active: completed at dtstart + duration
func (s *Scheduler) ScheduleTransitions(venID string, ev *model.Event, now time.Time) []Transition {
	if ev == nil {
		return nil
	}
	ap := ev.ActivePeriod
	status := ev.Status()
	var out []Transition
	if start, ok := ap.RampUpStart(); ok && status == model.StatusFar {
		out = append(out, s.arm(venID, ev, model.StatusNear, start, now))
	}
	if status == model.StatusFar || status == model.StatusNear {
		out = append(out, s.arm(venID, ev, model.StatusActive, ap.DTStart, now))
	}
	if status == model.StatusFar || status == model.StatusNear || status == model.StatusActive {
		out = append(out, s.arm(venID, ev, model.StatusCompleted, ap.End(), now))
	}
	return out
}

func (s *Scheduler) arm(venID string, ev *model.Event, target model.EventStatus, at, now time.Time) Transition {
	s.mu.Lock()
	s.seq++
	tr := &Transition{
		VenID:   venID,
		EventID: ev.ID(),
		Target:  target,
		FireAt:  at,
		Delay:   at.Sub(now),
		seq:     s.seq,
	}
	byEvent, ok := s.armed[tr.EventID]
	if !ok {
		byEvent = make(map[int]*Transition)
		s.armed[tr.EventID] = byEvent
	}
	byEvent[tr.seq] = tr
	s.mu.Unlock()

	s.log.Debugw("transition armed", map[string]any{
		"ven_id":   venID,
		"event_id": tr.EventID,
		"target":   target.String(),
		"fire_at":  at,
	})

	// Due transitions go straight to the executor so they keep arming order.
	if tr.Delay <= 0 {
		s.mu.Lock()
		armed := *tr
		s.mu.Unlock()
		s.exec.Post(func() { s.fire(tr, ev) })
		return armed
	}
	h := s.timer.Schedule(tr.Delay, func() {
		s.exec.Post(func() { s.fire(tr, ev) })
	})
	s.mu.Lock()
	tr.handle = h
	armed := *tr
	s.mu.Unlock()
	return armed
}

// fire applies tr unless it was cancelled after its timer elapsed or the event
// already reached a later phase.
func (s *Scheduler) fire(tr *Transition, ev *model.Event) {
	if !s.disarm(tr) {
		return
	}
	if phase(tr.Target) <= phase(ev.Status()) {
		s.log.Warnf("skipping transition %s of %s for %s: event is %s", tr.Target, tr.EventID, tr.VenID, ev.Status())
		return
	}
	if err := s.Apply(tr.VenID, ev, tr.Target); err != nil {
		s.log.Warnf("transition %s of %s for %s: %v", tr.Target, tr.EventID, tr.VenID, err)
	}
}

func phase(st model.EventStatus) int {
	switch st {
	case model.StatusFar:
		return 1
	case model.StatusNear:
		return 2
	case model.StatusActive:
		return 3
	case model.StatusCompleted, model.StatusCancelled:
		return 4
	}
	return 0
}

func (s *Scheduler) disarm(tr *Transition) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	byEvent, ok := s.armed[tr.EventID]
	if !ok {
		return false
	}
	if _, ok := byEvent[tr.seq]; !ok {
		return false
	}
	delete(byEvent, tr.seq)
	if len(byEvent) == 0 {
		delete(s.armed, tr.EventID)
	}
	return true
}

// Apply moves ev to target and pushes a snapshot onto the VEN's queue. Moving
// to cancelled bumps the modification number. The returned error reports a
// failed enqueue; the status change itself always happens.
func (s *Scheduler) Apply(venID string, ev *model.Event, target model.EventStatus) error {
	from := ev.Status()
	ev.Descriptor.EventStatus = target
	if target == model.StatusCancelled {
		ev.Descriptor.ModificationNumber++
	}
	now := s.timer.Now()
	s.log.Infow("event status changed", map[string]any{
		"ven_id":              venID,
		"event_id":            ev.ID(),
		"from":                from.String(),
		"to":                  target.String(),
		"modification_number": ev.Descriptor.ModificationNumber,
	})
	eventbus.PublishTo(s.bus, events.TransitionEvent{
		VenID:              venID,
		EventID:            ev.ID(),
		From:               from,
		To:                 target,
		ModificationNumber: ev.Descriptor.ModificationNumber,
		Time:               now,
	})
	err := s.queue.Enqueue(venID, *ev.Clone())
	if err != nil {
		eventbus.PublishTo(s.bus, events.QueueDropEvent{VenID: venID, EventID: ev.ID(), Err: err, Time: now})
		err = fmt.Errorf("enqueue %s for %s: %w", ev.ID(), venID, err)
	}
	if target.IsTerminal() && s.OnTerminal != nil {
		s.OnTerminal(venID, ev)
	}
	return err
}

// Cancel stops every armed transition of the event and returns how many were
// stopped.
func (s *Scheduler) Cancel(eventID string) int {
	s.mu.Lock()
	byEvent := s.armed[eventID]
	delete(s.armed, eventID)
	handles := make([]Handle, 0, len(byEvent))
	for _, tr := range byEvent {
		if tr.handle != nil {
			handles = append(handles, tr.handle)
		}
	}
	s.mu.Unlock()
	for _, h := range handles {
		h.Cancel()
	}
	n := len(byEvent)
	if n > 0 {
		s.log.Debugf("cancelled %d armed transitions of %s", n, eventID)
	}
	return n
}

// Armed returns the transitions still waiting to fire for the event, in fire
// time order.
func (s *Scheduler) Armed(eventID string) []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transition, 0, len(s.armed[eventID]))
	for _, tr := range s.armed[eventID] {
		out = append(out, *tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}
