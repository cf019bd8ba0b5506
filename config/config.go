// Package config loads the VTN configuration from a YAML or JSON file with
// optional environment overrides.
//
// Environment variables prefixed with K_ override file values. Nested keys
// are separated by a double underscore: K_MQTT__BROKER sets mqtt.broker.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/vtn/core/eventlog"
	"github.com/kilianp07/vtn/core/metrics"
	"github.com/kilianp07/vtn/core/scheduler"
	"github.com/kilianp07/vtn/core/service"
	"github.com/kilianp07/vtn/infra/monitoring"
	"github.com/kilianp07/vtn/infra/mqtt"
)

type Config struct {
	MQTT      mqtt.Config             `json:"mqtt"`
	Service   service.Config          `json:"service"`
	Scheduler scheduler.Config        `json:"scheduler"`
	Hooks     HooksConfig             `json:"hooks"`
	Queue     QueueConfig             `json:"queue"`
	Metrics   metrics.Config          `json:"metrics"`
	EventLog  eventlog.Config         `json:"eventlog"`
	Sentry    monitoring.SentryConfig `json:"sentry"`
	Log       LogConfig               `json:"log"`
	HTTP      HTTPConfig              `json:"http"`
}

// QueueConfig sizes the in-memory outbound queue used when no broker is
// configured.
type QueueConfig struct {
	Size int `json:"size"`
}

// MQTTEnabled reports whether a broker is configured.
func (c Config) MQTTEnabled() bool { return c.MQTT.Broker != "" }

// SetDefaults fills unset fields of every section.
func (c *Config) SetDefaults() {
	if c.MQTTEnabled() {
		c.MQTT.SetDefaults()
	}
	c.Service.SetDefaults()
	c.Hooks.SetDefaults()
	c.Log.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.MQTTEnabled() {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	if err := c.Service.Validate(); err != nil {
		return err
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if c.EventLog.Enabled && c.EventLog.Store.Type == "" {
		return fmt.Errorf("eventlog: store type required")
	}
	if c.Queue.Size < 0 {
		return fmt.Errorf("queue: size must not be negative")
	}
	return nil
}

// Load reads the file at path, applies K_ environment overrides, fills
// defaults and validates the result. An empty path loads the environment
// only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
