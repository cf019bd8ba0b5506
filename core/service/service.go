// Package service implements the VTN event service: it answers
// oadrRequestEvent and oadrCreatedEvent, moves events between the pending and
// running sets of a registry and hands accepted events to the status
// scheduler.
//
// All registry mutation and every fired transition run on a single dispatch
// loop started by Run. Business hooks run on the caller's goroutine, outside
// the loop, so other operations may interleave while a hook blocks. In
// particular a second acknowledgment for an event whose callback is still
// running finds the event in neither set and is skipped.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/kilianp07/vtn/core/events"
	"github.com/kilianp07/vtn/core/logger"
	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/core/monitoring"
	"github.com/kilianp07/vtn/core/queue"
	"github.com/kilianp07/vtn/core/registry"
	"github.com/kilianp07/vtn/core/scheduler"
	"github.com/kilianp07/vtn/internal/eventbus"
)

// Protocol operation names.
const (
	OpRequestEvent    = "oadrRequestEvent"
	OpDistributeEvent = "oadrDistributeEvent"
	OpCreatedEvent    = "oadrCreatedEvent"
	OpResponse        = "oadrResponse"
)

// PollingMode selects who handles oadrCreatedEvent.
type PollingMode string

const (
	// PollingInternal tracks decisions in the service's own registry.
	PollingInternal PollingMode = "internal"
	// PollingExternal hands every response list to the CreatedEventHook.
	PollingExternal PollingMode = "external"
)

// Config holds the service settings.
type Config struct {
	VTNID       string      `json:"vtn_id"`
	PollingMode PollingMode `json:"polling_mode"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.VTNID == "" {
		c.VTNID = "vtn"
	}
	if c.PollingMode == "" {
		c.PollingMode = PollingInternal
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.PollingMode {
	case PollingInternal, PollingExternal:
	default:
		return fmt.Errorf("service: unknown polling mode %q", c.PollingMode)
	}
	if c.VTNID == "" {
		return fmt.Errorf("service: vtn_id required")
	}
	return nil
}

// DistributeEvents is the oadrDistributeEvent payload.
type DistributeEvents struct {
	VTNID  string        `json:"vtn_id"`
	Events []model.Event `json:"events"`
}

// Response is the oadrResponse payload. It carries no data.
type Response struct{}

// EventView describes a tracked event.
type EventView struct {
	VenID string      `json:"ven_id"`
	State string      `json:"state"`
	Event model.Event `json:"event"`
}

// Snapshot lists the tracked events.
type Snapshot struct {
	Pending []EventView `json:"pending"`
	Running []EventView `json:"running"`
}

// Option configures an EventService.
type Option func(*EventService)

// WithTimer sets the clock used to arm transitions.
func WithTimer(t scheduler.Timer) Option { return func(s *EventService) { s.timer = t } }

// WithHooks plugs business logic into the service.
func WithHooks(h Hooks) Option { return func(s *EventService) { s.hooks = h } }

// WithBus publishes lifecycle events on p.
func WithBus(p eventbus.Publisher) Option { return func(s *EventService) { s.bus = p } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(s *EventService) { s.log = l } }

// WithMonitor reports hook failures to m.
func WithMonitor(m monitoring.Monitor) Option { return func(s *EventService) { s.mon = m } }

// WithRetention sets what happens to events leaving tracking.
func WithRetention(c scheduler.Config) Option { return func(s *EventService) { s.retention = c } }

// EventService dispatches the two inbound protocol operations.
type EventService struct {
	cfg       Config
	retention scheduler.Config
	timer     scheduler.Timer
	queue     queue.OutboundQueue
	bus       eventbus.Publisher
	log       logger.Logger
	mon       monitoring.Monitor
	hooks     Hooks

	loop  *loop
	reg   *registry.Registry
	sched *scheduler.Scheduler
}

// NewEventService creates a service pushing status changes onto q. The
// service does nothing until Run is called.
func NewEventService(cfg Config, q queue.OutboundQueue, opts ...Option) (*EventService, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &EventService{cfg: cfg, queue: q, reg: registry.New()}
	for _, o := range opts {
		o(s)
	}
	s.log = logger.OrNop(s.log)
	s.mon = monitoring.OrNop(s.mon)
	if s.timer == nil {
		s.timer = scheduler.RealTimer{}
	}
	s.hooks = s.hooks.withDefaults(s.log)
	s.loop = newLoop(s.recovered)
	sched, err := scheduler.New(s.timer, s.loop, q, s.bus, s.log)
	if err != nil {
		return nil, fmt.Errorf("event service: %w", err)
	}
	sched.OnTerminal = s.onTerminal
	s.sched = sched
	return s, nil
}

// Run drives the dispatch loop until ctx is done. Operations called before
// Run block until it starts; operations called after it returns fail with
// ErrStopped.
func (s *EventService) Run(ctx context.Context) error {
	s.log.Infof("event service %s running in %s polling mode", s.cfg.VTNID, s.cfg.PollingMode)
	err := s.loop.run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Config returns the effective configuration.
func (s *EventService) Config() Config { return s.cfg }

func (s *EventService) recovered(r any) {
	err := fmt.Errorf("event service: panic: %v", r)
	s.log.Errorf("%v", err)
	s.mon.CaptureException(err, map[string]string{"component": "event_service"})
}

// RequestEvent answers oadrRequestEvent with the events selected by the
// request-event hook.
func (s *EventService) RequestEvent(ctx context.Context, venID string) (DistributeEvents, error) {
	if venID == "" {
		return DistributeEvents{}, ErrMissingVenID
	}
	start := time.Now()
	sel, err := s.callRequestHook(ctx, venID)
	if err == nil {
		err = sel.Validate()
	}
	out := DistributeEvents{VTNID: s.cfg.VTNID, Events: []model.Event{}}
	if err == nil {
		out.Events = sel.Events()
		for id, ferr := range sel.CheckEvents() {
			s.log.Warnf("distributing event %s to %s despite validation failure: %v", id, venID, ferr)
		}
	}
	eventbus.PublishTo(s.bus, events.RequestEvent{
		VenID:   venID,
		Events:  len(out.Events),
		Latency: time.Since(start),
		Err:     err,
		Time:    s.timer.Now(),
	})
	if err != nil {
		s.hookFailed("request_event", venID, "", err)
		return DistributeEvents{}, fmt.Errorf("%s for %s: %w", OpRequestEvent, venID, err)
	}
	s.log.Debugw("events distributed", map[string]any{
		"ven_id": venID,
		"events": len(out.Events),
		"kind":   sel.Kind().String(),
	})
	return out, nil
}

func (s *EventService) callRequestHook(ctx context.Context, venID string) (sel Selection, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("request event hook panic: %v", r)
		}
	}()
	return s.hooks.RequestEvent(ctx, venID)
}

// CreatedEvent answers oadrCreatedEvent. Entry level problems never fail the
// operation: unknown ids and malformed entries are skipped and callback
// errors are reported without undoing the state move. Only a cancelled ctx or
// a stopped service returns an error.
func (s *EventService) CreatedEvent(ctx context.Context, venID string, responses []model.EventResponse) (Response, error) {
	if venID == "" {
		return Response{}, ErrMissingVenID
	}
	if s.cfg.PollingMode == PollingExternal {
		if err := s.callCreatedHook(ctx, venID, responses); err != nil {
			s.hookFailed("created_event", venID, "", err)
		}
		for _, r := range responses {
			responsesTotal.WithLabelValues(outcomeExternal).Inc()
			eventbus.PublishTo(s.bus, events.DecisionEvent{
				VenID: venID, EventID: r.EventID, OptType: r.OptType,
				Source: events.SourceExternal, Time: s.timer.Now(),
			})
		}
		return Response{}, nil
	}
	for _, r := range responses {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		if err := s.handleResponse(ctx, venID, r); err != nil {
			return Response{}, err
		}
	}
	return Response{}, nil
}

func (s *EventService) callCreatedHook(ctx context.Context, venID string, responses []model.EventResponse) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("created event hook panic: %v", r)
		}
	}()
	return s.hooks.CreatedEvent(ctx, venID, append([]model.EventResponse(nil), responses...))
}

func (s *EventService) handleResponse(ctx context.Context, venID string, r model.EventResponse) error {
	if err := r.Validate(); err != nil {
		s.log.Warnf("skipping response from %s: %v", venID, err)
		responsesTotal.WithLabelValues(outcomeInvalid).Inc()
		return nil
	}
	bg := context.WithoutCancel(ctx)

	var (
		b      registry.Binding
		source = events.SourceUnknown
	)
	err := s.loop.do(bg, func() error {
		if p, err := s.reg.AcceptPending(r.EventID); err == nil {
			b, source = p, events.SourcePending
		} else if run, err := s.reg.LookupRunning(r.EventID); err == nil {
			b, source = run, events.SourceRunning
			if s.retention.CancelTimersOnDiscard {
				s.sched.Cancel(r.EventID)
			}
		}
		s.updateGauges()
		return nil
	})
	if err != nil {
		return err
	}
	if source == events.SourceUnknown {
		s.log.Debugf("ignoring response from %s for unknown event %s", venID, r.EventID)
		responsesTotal.WithLabelValues(outcomeUnknown).Inc()
		eventbus.PublishTo(s.bus, events.DecisionEvent{
			VenID: venID, EventID: r.EventID, OptType: r.OptType,
			Source: source, Time: s.timer.Now(),
		})
		return nil
	}
	if b.VenID != venID {
		s.log.Warnf("event %s was offered to %s but answered by %s", r.EventID, b.VenID, venID)
	}

	cbErr := s.callDecision(ctx, b, venID, r)
	if cbErr != nil {
		s.hookFailed("decision", venID, r.EventID, cbErr)
	}

	outcome := outcomeConfirmed
	if source == events.SourcePending {
		outcome = outcomeDeclined
		if r.OptType == model.OptIn {
			outcome = outcomeAccepted
			err = s.loop.do(bg, func() error {
				if err := s.reg.InsertRunning(b); err != nil {
					s.log.Warnf("cannot track %s for %s: %v", r.EventID, venID, err)
					return nil
				}
				s.sched.ScheduleTransitions(venID, b.Event, s.timer.Now())
				s.updateGauges()
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
	responsesTotal.WithLabelValues(outcome).Inc()
	s.log.Infow("event decision processed", map[string]any{
		"ven_id":   venID,
		"event_id": r.EventID,
		"opt_type": r.OptType.String(),
		"source":   source,
		"outcome":  outcome,
	})
	eventbus.PublishTo(s.bus, events.DecisionEvent{
		VenID: venID, EventID: r.EventID, OptType: r.OptType,
		Source: source, Err: cbErr, Time: s.timer.Now(),
	})
	return nil
}

func (s *EventService) callDecision(ctx context.Context, b registry.Binding, venID string, r model.EventResponse) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("decision callback panic: %v", rec)
		}
	}()
	cb := b.Callback
	if cb == nil {
		cb = s.hooks.Decision
	}
	return cb(ctx, venID, r.EventID, r.OptType)
}

func (s *EventService) hookFailed(hook, venID, eventID string, err error) {
	hookFailures.WithLabelValues(hook).Inc()
	s.log.Errorf("%s hook failed for %s: %v", hook, venID, err)
	tags := map[string]string{"hook": hook, "ven_id": venID}
	if eventID != "" {
		tags["event_id"] = eventID
	}
	s.mon.CaptureException(err, tags)
}

// AddEvent offers ev to a VEN: it is registered pending with cb and pushed to
// the VEN's queue. An empty event id is replaced by a random UUID and an empty
// status by far. The event stays pending when the push fails; the returned
// error then wraps queue.ErrQueueFull or queue.ErrClosed.
func (s *EventService) AddEvent(ctx context.Context, venID string, ev model.Event, cb DecisionCallback) (string, error) {
	if venID == "" {
		return "", ErrMissingVenID
	}
	e := ev.Clone()
	if e.Descriptor.EventID == "" {
		e.Descriptor.EventID = uuid.NewString()
	}
	if e.Descriptor.EventStatus == "" {
		e.Descriptor.EventStatus = model.StatusFar
	}
	if e.Descriptor.CreatedAt.IsZero() {
		e.Descriptor.CreatedAt = s.timer.Now()
	}
	if err := e.Validate(); err != nil {
		return "", err
	}
	id := e.ID()
	var pushErr error
	err := s.loop.do(ctx, func() error {
		if err := s.reg.RegisterPending(registry.Binding{VenID: venID, Event: e, Callback: cb}); err != nil {
			return err
		}
		s.updateGauges()
		if err := s.queue.Enqueue(venID, *e.Clone()); err != nil {
			pushErr = fmt.Errorf("push %s to %s: %w", id, venID, err)
			eventbus.PublishTo(s.bus, events.QueueDropEvent{VenID: venID, EventID: id, Err: err, Time: s.timer.Now()})
		}
		eventbus.PublishTo(s.bus, events.OfferedEvent{VenID: venID, Event: *e.Clone(), Time: s.timer.Now()})
		return nil
	})
	if err != nil {
		return "", err
	}
	s.log.Infow("event offered", map[string]any{"ven_id": venID, "event_id": id})
	return id, pushErr
}

// CancelEvent moves a tracked event to cancelled, bumps its modification
// number, pushes it to its VEN and stops its armed transitions. A failed push
// is returned but the event stays cancelled.
func (s *EventService) CancelEvent(ctx context.Context, eventID string) error {
	return s.loop.do(ctx, func() error {
		b, ok := s.reg.PeekRunning(eventID)
		if !ok {
			b, ok = s.reg.PeekPending(eventID)
		}
		if !ok {
			return fmt.Errorf("cancel %s: %w", eventID, ErrEventNotFound)
		}
		if b.Event.Status().IsTerminal() {
			return fmt.Errorf("cancel %s: %w", eventID, ErrEventFinished)
		}
		s.sched.Cancel(eventID)
		err := s.sched.Apply(b.VenID, b.Event, model.StatusCancelled)
		s.updateGauges()
		return err
	})
}

// Snapshot returns copies of the pending and running events.
func (s *EventService) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.loop.do(ctx, func() error {
		view := func(state string) func(registry.Binding, int) EventView {
			return func(b registry.Binding, _ int) EventView {
				return EventView{VenID: b.VenID, State: state, Event: *b.Event}
			}
		}
		snap.Pending = lo.Map(s.reg.Pending(), view(events.SourcePending))
		snap.Running = lo.Map(s.reg.Running(), view(events.SourceRunning))
		return nil
	})
	return snap, err
}

// PendingFor returns copies of the events offered to venID still awaiting a
// decision.
func (s *EventService) PendingFor(ctx context.Context, venID string) ([]model.Event, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := lo.FilterMap(snap.Pending, func(v EventView, _ int) (model.Event, bool) {
		return v.Event, v.VenID == venID
	})
	return out, nil
}

// onTerminal runs on the loop after an event reaches completed or cancelled.
func (s *EventService) onTerminal(venID string, ev *model.Event) {
	if !s.retention.PruneTerminal {
		return
	}
	id := ev.ID()
	b, ok := s.reg.PeekRunning(id)
	if !ok {
		b, ok = s.reg.PeekPending(id)
	}
	if !ok || b.Event != ev {
		return
	}
	s.reg.Remove(id)
	if s.retention.CancelTimersOnDiscard {
		s.sched.Cancel(id)
	}
	s.updateGauges()
	s.log.Debugf("pruned %s event %s of %s", ev.Status(), id, venID)
}

func (s *EventService) updateGauges() {
	p, r := s.reg.Len()
	pendingEvents.Set(float64(p))
	runningEvents.Set(float64(r))
}
