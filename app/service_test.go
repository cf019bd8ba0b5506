package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apievents "github.com/kilianp07/vtn/api/events"
	"github.com/kilianp07/vtn/config"
	"github.com/kilianp07/vtn/core/eventlog"
	"github.com/kilianp07/vtn/core/factory"
	coremetrics "github.com/kilianp07/vtn/core/metrics"
	"github.com/kilianp07/vtn/core/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Metrics: coremetrics.Config{Sinks: []factory.ModuleConfig{{Type: "nop"}}},
		EventLog: eventlog.Config{Enabled: true, Store: factory.ModuleConfig{
			Type: "jsonl",
			Conf: map[string]any{"path": filepath.Join(t.TempDir(), "events.jsonl")},
		}},
	}
	cfg.Hooks.RequestEvent.Type = "pending"
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServiceLifecycle(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	h := svc.Handler()
	body, err := json.Marshal(apievents.AddRequest{VenID: "VEN123", Event: model.Event{
		Descriptor:   model.EventDescriptor{EventID: "EVT1"},
		ActivePeriod: model.ActivePeriod{DTStart: time.Now().Add(time.Hour), Duration: time.Hour},
	}})
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	dist, err := svc.Events.RequestEvent(ctx, "VEN123")
	require.NoError(t, err)
	require.Len(t, dist.Events, 1)
	assert.Equal(t, "vtn", dist.VTNID)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/vens/VEN123/events", nil))
	var queued []model.Event
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &queued))
	require.Len(t, queued, 1)
	assert.Equal(t, model.StatusFar, queued[0].Status())

	require.Eventually(t, func() bool {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/events/logs?kind=offer", nil))
		var recs []eventlog.LogRecord
		_ = json.Unmarshal(rr.Body.Bytes(), &recs)
		return len(recs) == 1 && recs[0].EventID == "EVT1"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestNewRejectsUnknownHook(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hooks.Decision.Type = "magic"
	_, err := New(cfg)
	assert.ErrorIs(t, err, factory.ErrUnknownModule)
}

func TestNewRejectsUnknownSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "statsd"}}
	_, err := New(cfg)
	assert.ErrorIs(t, err, factory.ErrUnknownModule)
}
