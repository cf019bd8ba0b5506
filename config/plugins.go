package config

import "github.com/kilianp07/vtn/core/factory"

// HooksConfig selects the business hooks plugged into the event service.
// Each hook is defined solely by its type and an arbitrary configuration map
// decoded by the hook factory.
type HooksConfig struct {
	RequestEvent factory.ModuleConfig `json:"request_event"`
	CreatedEvent factory.ModuleConfig `json:"created_event"`
	Decision     factory.ModuleConfig `json:"decision"`
}

// SetDefaults selects the built-in hooks.
func (c *HooksConfig) SetDefaults() {
	if c.RequestEvent.Type == "" {
		c.RequestEvent.Type = "default"
	}
	if c.CreatedEvent.Type == "" {
		c.CreatedEvent.Type = "default"
	}
	if c.Decision.Type == "" {
		c.Decision.Type = "default"
	}
}
