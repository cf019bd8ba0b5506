package eventlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vtn/core/events"
	"github.com/kilianp07/vtn/core/factory"
	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/internal/eventbus"
)

func TestStartRecorder(t *testing.T) {
	store, err := NewLogStore(factory.ModuleConfig{
		Type: "jsonl",
		Conf: map[string]any{"path": filepath.Join(t.TempDir(), "audit.jsonl")},
	})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := StartRecorder(ctx, bus, store, nil)

	now := time.Now().UTC()
	ev := model.Event{Descriptor: model.EventDescriptor{EventID: "e1", EventStatus: model.StatusFar}}
	bus.Publish(events.OfferedEvent{VenID: "v", Event: ev, Time: now})
	bus.Publish(events.DecisionEvent{VenID: "v", EventID: "e1", OptType: model.OptOut, Source: events.SourcePending, Err: errors.New("cb failed"), Time: now})
	bus.Publish(events.TransitionEvent{VenID: "v", EventID: "e1", From: model.StatusActive, To: model.StatusCancelled, ModificationNumber: 1, Time: now})
	bus.Publish(42)
	bus.Close()
	<-done

	out, err := store.Query(context.Background(), LogQuery{EventID: "e1"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, KindOffer, out[0].Kind)
	assert.Equal(t, "far", out[0].To)
	assert.Equal(t, "cb failed", out[1].Error)
	assert.Equal(t, "optOut", out[1].OptType)
	assert.Equal(t, uint(1), out[2].ModificationNumber)
}

func TestFromEvent(t *testing.T) {
	rec, ok := FromEvent(events.RequestEvent{VenID: "v", Events: 2})
	require.True(t, ok)
	assert.Equal(t, KindRequest, rec.Kind)
	assert.Equal(t, 2, rec.Events)

	rec, ok = FromEvent(events.QueueDropEvent{VenID: "v", EventID: "e", Err: errors.New("full")})
	require.True(t, ok)
	assert.Equal(t, KindQueueDrop, rec.Kind)
	assert.Equal(t, "full", rec.Error)

	_, ok = FromEvent("other")
	assert.False(t, ok)
}

func TestNewLogStoreErrors(t *testing.T) {
	_, err := NewLogStore(factory.ModuleConfig{Type: "csv"})
	assert.ErrorIs(t, err, factory.ErrUnknownModule)
	_, err = NewLogStore(factory.ModuleConfig{Type: "jsonl"})
	assert.Error(t, err)
	_, err = NewLogStore(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{}})
	assert.Error(t, err)
	_, err = NewLogStore(factory.ModuleConfig{Type: "postgres", Conf: map[string]any{}})
	assert.ErrorContains(t, err, "url required")
}
