package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic, kind string
	payload     []byte
}

// fakeBroker records publishes and routes deliveries to subscribed handlers
// by exact topic or single-level wildcard.
type fakeBroker struct {
	mu       sync.Mutex
	subs     map[string]paho.MessageHandler
	pubs     []published
	fail     error
	notified chan struct{}
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: make(map[string]paho.MessageHandler), notified: make(chan struct{}, 64)}
}

func (b *fakeBroker) Publish(_ context.Context, topic, kind string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.pubs = append(b.pubs, published{topic: topic, kind: kind, payload: payload})
	select {
	case b.notified <- struct{}{}:
	default:
	}
	return nil
}

func (b *fakeBroker) Subscribe(topic, _ string, h paho.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = h
	return nil
}

func (b *fakeBroker) deliver(t *testing.T, topics Topics, topic string, v any) {
	t.Helper()
	payload, ok := v.([]byte)
	if !ok {
		var err error
		payload, err = json.Marshal(v)
		require.NoError(t, err)
	}
	_, op, parsed := topics.Parse(topic)
	require.True(t, parsed, topic)
	b.mu.Lock()
	h := b.subs[topics.Inbound(op)]
	b.mu.Unlock()
	require.NotNil(t, h, "no subscription for %s", topic)
	h(nil, mockMessage{topic: topic, p: payload})
}

func (b *fakeBroker) sent() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.pubs...)
}

// waitFor blocks until n messages were published.
func (b *fakeBroker) waitFor(t *testing.T, n int) []published {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if got := b.sent(); len(got) >= n {
			return got
		}
		select {
		case <-b.notified:
		case <-deadline:
			t.Fatalf("timeout waiting for %d publishes, got %d", n, len(b.sent()))
		}
	}
}

func decode[T any](t *testing.T, p published) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(p.payload, &v), fmt.Sprintf("payload on %s", p.topic))
	return v
}
