package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the retention policy applied to status-tracked events.
//
// Both switches default to false, which keeps terminal events in the running
// set and lets armed timers fire after an event stops being tracked.
type Config struct {
	// PruneTerminal removes an event from tracking once it is completed or cancelled.
	PruneTerminal bool `json:"prune_terminal" yaml:"prune_terminal"`
	// CancelTimersOnDiscard cancels armed transitions when an event leaves tracking.
	CancelTimersOnDiscard bool `json:"cancel_timers_on_discard" yaml:"cancel_timers_on_discard"`
}

// LoadConfig loads Config from a JSON or YAML file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeConfig(f, ext)
}

// DecodeConfig reads from r to decode a Config.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", format)
	}
	return cfg, nil
}
