package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vtn/core/service"
	"github.com/kilianp07/vtn/infra/mqtt"
)

func write(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := write(t, "config.yaml", `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "vtn-a"
  topic_prefix: "site/a"
  qos:
    distribute: 1
service:
  vtn_id: "VTN-1"
  polling_mode: "internal"
scheduler:
  prune_terminal: true
hooks:
  request_event:
    type: "pending"
metrics:
  prometheus_addr: ":9100"
  sinks:
    - type: "nop"
eventlog:
  enabled: true
  store:
    type: "jsonl"
    conf:
      path: "/tmp/vtn.jsonl"
log:
  level: "debug"
http:
  addr: ":8080"
  token: "secret"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "vtn-a"},
		{"topic_prefix", cfg.MQTT.TopicPrefix, "site/a"},
		{"qos", cfg.MQTT.QoS[mqtt.QoSDistribute], byte(1)},
		{"max_retries default", cfg.MQTT.MaxRetries, 3},
		{"vtn_id", cfg.Service.VTNID, "VTN-1"},
		{"polling_mode", cfg.Service.PollingMode, service.PollingInternal},
		{"prune_terminal", cfg.Scheduler.PruneTerminal, true},
		{"cancel_timers", cfg.Scheduler.CancelTimersOnDiscard, false},
		{"request hook", cfg.Hooks.RequestEvent.Type, "pending"},
		{"decision hook default", cfg.Hooks.Decision.Type, "default"},
		{"prometheus_addr", cfg.Metrics.PrometheusAddr, ":9100"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"eventlog", cfg.EventLog.Store.Conf["path"], "/tmp/vtn.jsonl"},
		{"log level", cfg.Log.Level, "debug"},
		{"http", cfg.HTTP.Addr, ":8080"},
		{"token", cfg.HTTP.Token, "secret"},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
	assert.True(t, cfg.MQTTEnabled())
	assert.True(t, cfg.HTTP.Enabled())
}

func TestLoadJSONDefaults(t *testing.T) {
	cfg, err := Load(write(t, "config.json", `{"service": {"polling_mode": "external"}}`))
	require.NoError(t, err)
	assert.Equal(t, "vtn", cfg.Service.VTNID)
	assert.Equal(t, service.PollingExternal, cfg.Service.PollingMode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.MQTTEnabled())
	assert.Empty(t, cfg.MQTT.TopicPrefix)
	assert.False(t, cfg.HTTP.Enabled())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("K_MQTT__BROKER", "tcp://broker:1883")
	t.Setenv("K_SERVICE__VTN_ID", "from-env")
	t.Setenv("K_SCHEDULER__CANCEL_TIMERS_ON_DISCARD", "true")
	cfg, err := Load(write(t, "config.yaml", "service:\n  vtn_id: file\n"))
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "from-env", cfg.Service.VTNID)
	assert.True(t, cfg.Scheduler.CancelTimersOnDiscard)
	assert.Equal(t, mqtt.DefaultPrefix, cfg.MQTT.TopicPrefix)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Service.VTNID)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"polling mode":   "service:\n  polling_mode: sometimes\n",
		"log level":      "log:\n  level: loud\n",
		"eventlog store": "eventlog:\n  enabled: true\n",
		"mqtt qos":       "mqtt:\n  broker: tcp://b:1883\n  qos:\n    request: 5\n",
		"sentry rate":    "sentry:\n  traces_sample_rate: 3\n",
		"queue size":     "queue:\n  size: -1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, "config.yaml", data))
			assert.Error(t, err)
		})
	}

	_, err := Load(write(t, "config.toml", ""))
	assert.ErrorContains(t, err, "unsupported")
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
