// Package plugins builds the business hooks of the event service from
// configuration.
package plugins

import (
	"context"
	"fmt"

	"github.com/kilianp07/vtn/config"
	"github.com/kilianp07/vtn/core/factory"
	"github.com/kilianp07/vtn/core/logger"
	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/core/service"
)

// Deps are the collaborators a hook may use. Pending is set once the service
// exists; hooks must only call it at run time.
type Deps struct {
	Log     logger.Logger
	Pending func(ctx context.Context, venID string) ([]model.Event, error)
}

// RequestEventFactory builds an oadrRequestEvent hook from raw config.
type RequestEventFactory func(conf map[string]any, d *Deps) (service.RequestEventHook, error)

// CreatedEventFactory builds an external-mode oadrCreatedEvent hook from raw config.
type CreatedEventFactory func(conf map[string]any, d *Deps) (service.CreatedEventHook, error)

// DecisionFactory builds the default decision callback from raw config.
type DecisionFactory func(conf map[string]any, d *Deps) (service.DecisionCallback, error)

var (
	RequestEventHooks = map[string]RequestEventFactory{}
	CreatedEventHooks = map[string]CreatedEventFactory{}
	Decisions         = map[string]DecisionFactory{}
)

func RegisterRequestEvent(name string, f RequestEventFactory) { RequestEventHooks[name] = f }
func RegisterCreatedEvent(name string, f CreatedEventFactory) { CreatedEventHooks[name] = f }
func RegisterDecision(name string, f DecisionFactory)         { Decisions[name] = f }

func lookup[F any](kind string, m map[string]F, cfg factory.ModuleConfig) (F, error) {
	f, ok := m[cfg.Type]
	if !ok {
		var zero F
		return zero, fmt.Errorf("%s hook: %w %q", kind, factory.ErrUnknownModule, cfg.Type)
	}
	return f, nil
}

// BuildHooks creates the hooks selected by cfg. Hooks left nil fall back to
// the service defaults.
func BuildHooks(cfg config.HooksConfig, d *Deps) (service.Hooks, error) {
	var h service.Hooks
	rf, err := lookup("request_event", RequestEventHooks, cfg.RequestEvent)
	if err != nil {
		return h, err
	}
	if h.RequestEvent, err = rf(cfg.RequestEvent.Conf, d); err != nil {
		return h, fmt.Errorf("request_event hook %s: %w", cfg.RequestEvent.Type, err)
	}
	cf, err := lookup("created_event", CreatedEventHooks, cfg.CreatedEvent)
	if err != nil {
		return h, err
	}
	if h.CreatedEvent, err = cf(cfg.CreatedEvent.Conf, d); err != nil {
		return h, fmt.Errorf("created_event hook %s: %w", cfg.CreatedEvent.Type, err)
	}
	df, err := lookup("decision", Decisions, cfg.Decision)
	if err != nil {
		return h, err
	}
	if h.Decision, err = df(cfg.Decision.Conf, d); err != nil {
		return h, fmt.Errorf("decision hook %s: %w", cfg.Decision.Type, err)
	}
	return h, nil
}
