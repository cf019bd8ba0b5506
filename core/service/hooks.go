package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/kilianp07/vtn/core/logger"
	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/core/registry"
)

// SelectionKind tags the shape of a request-event hook result.
type SelectionKind int

const (
	SelectNone SelectionKind = iota
	SelectSingle
	SelectMany
)

func (k SelectionKind) String() string {
	switch k {
	case SelectNone:
		return "none"
	case SelectSingle:
		return "single"
	case SelectMany:
		return "many"
	}
	return fmt.Sprintf("SelectionKind(%d)", int(k))
}

// Selection is what business logic hands back for an oadrRequestEvent: no
// event, a single event or a list of events.
type Selection struct {
	kind   SelectionKind
	events []model.Event
}

// None selects no event.
func None() Selection { return Selection{kind: SelectNone} }

// Single selects exactly one event.
func Single(ev model.Event) Selection {
	return Selection{kind: SelectSingle, events: []model.Event{ev}}
}

// Many selects a list of events. An empty list is valid.
func Many(evs []model.Event) Selection {
	return Selection{kind: SelectMany, events: append([]model.Event{}, evs...)}
}

// Kind reports the selection shape.
func (s Selection) Kind() SelectionKind { return s.kind }

// Events flattens the selection. The result is never nil.
func (s Selection) Events() []model.Event {
	if s.kind == SelectNone || len(s.events) == 0 {
		return []model.Event{}
	}
	return append([]model.Event{}, s.events...)
}

// Validate checks the selection's shape.
func (s Selection) Validate() error {
	switch s.kind {
	case SelectNone:
		return nil
	case SelectSingle:
		if len(s.events) != 1 {
			return fmt.Errorf("%w: single selection holds %d events", ErrInvalidHandlerResult, len(s.events))
		}
	case SelectMany:
	default:
		return fmt.Errorf("%w: unknown selection kind %s", ErrInvalidHandlerResult, s.kind)
	}
	return nil
}

// CheckEvents runs field validation on every selected event and returns the
// failures keyed by event id.
func (s Selection) CheckEvents() map[string]error {
	var out map[string]error
	for i := range s.events {
		if err := s.events[i].Validate(); err != nil {
			if out == nil {
				out = make(map[string]error)
			}
			out[s.events[i].ID()] = err
		}
	}
	return out
}

// RequestEventHook selects the events to distribute to a VEN. It may block;
// the service always waits for it.
type RequestEventHook func(ctx context.Context, venID string) (Selection, error)

// DecisionCallback is bound to a pending event and told about the VEN's
// decision on it.
type DecisionCallback = registry.Callback

// CreatedEventHook receives every oadrCreatedEvent in external polling mode.
// It gets the whole response list of the message.
type CreatedEventHook func(ctx context.Context, venID string, responses []model.EventResponse) error

// Hooks groups the business logic plugged into the service. Nil members are
// replaced by the logged defaults.
type Hooks struct {
	RequestEvent RequestEventHook
	CreatedEvent CreatedEventHook
	// Decision is bound to events registered without their own callback.
	Decision DecisionCallback
}

// DefaultHooks returns hooks that only log a warning. They never fail.
func DefaultHooks(log logger.Logger) Hooks {
	log = logger.OrNop(log)
	return Hooks{
		RequestEvent: func(_ context.Context, venID string) (Selection, error) {
			log.Warnf("no request event handler configured; returning no events to %s", venID)
			return None(), nil
		},
		CreatedEvent: func(_ context.Context, venID string, responses []model.EventResponse) error {
			log.Warnf("no created event handler configured; ignoring %d responses from %s", len(responses), venID)
			return nil
		},
		Decision: func(_ context.Context, venID, eventID string, opt model.OptType) error {
			log.Warnf("no decision callback bound to %s; %s answered %s", eventID, venID, opt)
			return nil
		},
	}
}

func (h Hooks) withDefaults(log logger.Logger) Hooks {
	d := DefaultHooks(log)
	if h.RequestEvent == nil {
		h.RequestEvent = d.RequestEvent
	}
	if h.CreatedEvent == nil {
		h.CreatedEvent = d.CreatedEvent
	}
	if h.Decision == nil {
		h.Decision = d.Decision
	}
	return h
}

// AdaptRequestHandler wraps business logic whose result type is only known at
// run time. It accepts nil, model.Event, *model.Event, []model.Event,
// []*model.Event, a Selection, and map[string]any decoded into an event. Any
// other value fails with ErrInvalidHandlerResult.
func AdaptRequestHandler(fn func(ctx context.Context, venID string) (any, error)) RequestEventHook {
	return func(ctx context.Context, venID string) (Selection, error) {
		v, err := fn(ctx, venID)
		if err != nil {
			return Selection{}, err
		}
		return Normalize(v)
	}
}

// Normalize converts a dynamically typed handler result into a Selection.
func Normalize(v any) (Selection, error) {
	switch r := v.(type) {
	case nil:
		return None(), nil
	case Selection:
		return r, nil
	case model.Event:
		return Single(r), nil
	case *model.Event:
		if r == nil {
			return Selection{}, fmt.Errorf("%w: nil event", ErrInvalidHandlerResult)
		}
		return Single(*r), nil
	case []model.Event:
		return Many(r), nil
	case []*model.Event:
		evs := make([]model.Event, 0, len(r))
		for i, e := range r {
			if e == nil {
				return Selection{}, fmt.Errorf("%w: nil event at index %d", ErrInvalidHandlerResult, i)
			}
			evs = append(evs, *e)
		}
		return Many(evs), nil
	case map[string]any:
		ev, err := decodeEvent(r)
		if err != nil {
			return Selection{}, fmt.Errorf("%w: %v", ErrInvalidHandlerResult, err)
		}
		return Single(ev), nil
	default:
		return Selection{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidHandlerResult, v)
	}
}

func decodeEvent(m map[string]any) (model.Event, error) {
	var ev model.Event
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		Result:      &ev,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return ev, err
	}
	if err := dec.Decode(m); err != nil {
		return ev, err
	}
	return ev, nil
}
