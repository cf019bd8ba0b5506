package plugins

import (
	"context"
	"fmt"

	"github.com/kilianp07/vtn/core/factory"
	"github.com/kilianp07/vtn/core/logger"
	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/core/service"
)

type staticConf struct {
	// Events maps a VEN id to the event handed out on every request.
	Events map[string]map[string]any `json:"events"`
}

func init() {
	RegisterRequestEvent("default", func(map[string]any, *Deps) (service.RequestEventHook, error) {
		return nil, nil
	})
	RegisterRequestEvent("pending", func(_ map[string]any, d *Deps) (service.RequestEventHook, error) {
		return func(ctx context.Context, venID string) (service.Selection, error) {
			if d.Pending == nil {
				return service.None(), fmt.Errorf("pending hook not bound to a service")
			}
			evs, err := d.Pending(ctx, venID)
			if err != nil {
				return service.Selection{}, err
			}
			if len(evs) == 0 {
				return service.None(), nil
			}
			return service.Many(evs), nil
		}, nil
	})
	RegisterRequestEvent("static", func(conf map[string]any, _ *Deps) (service.RequestEventHook, error) {
		var c staticConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		for ven, raw := range c.Events {
			if _, err := service.Normalize(raw); err != nil {
				return nil, fmt.Errorf("event for %s: %w", ven, err)
			}
		}
		return service.AdaptRequestHandler(func(_ context.Context, venID string) (any, error) {
			if raw, ok := c.Events[venID]; ok {
				return raw, nil
			}
			return nil, nil
		}), nil
	})

	RegisterCreatedEvent("default", func(map[string]any, *Deps) (service.CreatedEventHook, error) {
		return nil, nil
	})
	RegisterCreatedEvent("log", func(_ map[string]any, d *Deps) (service.CreatedEventHook, error) {
		log := logger.OrNop(d.Log)
		return func(_ context.Context, venID string, rs []model.EventResponse) error {
			for _, r := range rs {
				log.Infow("event response", map[string]any{
					"ven_id":   venID,
					"event_id": r.EventID,
					"opt_type": r.OptType.String(),
				})
			}
			return nil
		}, nil
	})

	RegisterDecision("default", func(map[string]any, *Deps) (service.DecisionCallback, error) {
		return nil, nil
	})
	RegisterDecision("log", func(_ map[string]any, d *Deps) (service.DecisionCallback, error) {
		log := logger.OrNop(d.Log)
		return func(_ context.Context, venID, eventID string, opt model.OptType) error {
			log.Infow("event decision", map[string]any{"ven_id": venID, "event_id": eventID, "opt_type": opt.String()})
			return nil
		}, nil
	})
}
