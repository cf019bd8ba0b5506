// Package mqtt carries the VTN event service over an MQTT broker using
// Eclipse Paho. Payloads are JSON.
package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/vtn/core/monitoring"
	"github.com/kilianp07/vtn/infra/logger"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Broker is the part of a Transport used by the outbox and the server.
type Broker interface {
	Publish(ctx context.Context, topic, kind string, payload []byte) error
	Subscribe(topic, kind string, h paho.MessageHandler) error
}

type subscription struct {
	kind string
	h    paho.MessageHandler
}

// Transport is a connected Paho client. Subscriptions are restored on
// every reconnect.
type Transport struct {
	cli        pahoClient
	qos        map[string]byte
	maxRetries int
	backoff    time.Duration
	logger     logger.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// NewTransport connects to the broker described by cfg.
func NewTransport(cfg Config) (*Transport, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_client")
	t := &Transport{
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff(),
		logger:     log,
		subs:       make(map[string]subscription),
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected to %s as %s", cfg.Broker, cfg.ClientID)
		t.resubscribe(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	t.cli = c
	return t, nil
}

// QoS returns the configured quality of service for a message kind.
func (t *Transport) QoS(kind string) byte {
	if q, ok := t.qos[kind]; ok {
		return q
	}
	return 0
}

func (t *Transport) resubscribe(c pahoClient) {
	t.mu.Lock()
	subs := make(map[string]subscription, len(t.subs))
	for topic, s := range t.subs {
		subs[topic] = s
	}
	t.mu.Unlock()
	for topic, s := range subs {
		if token := c.Subscribe(topic, t.QoS(s.kind), s.h); token.Wait() && token.Error() != nil {
			t.logger.Errorf("subscribe %s: %v", topic, token.Error())
		}
	}
}

// Subscribe registers h on topic. The subscription survives reconnects.
func (t *Transport) Subscribe(topic, kind string, h paho.MessageHandler) error {
	t.mu.Lock()
	t.subs[topic] = subscription{kind: kind, h: h}
	t.mu.Unlock()
	token := t.cli.Subscribe(topic, t.QoS(kind), h)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	t.logger.Debugf("subscribed to %s", topic)
	return nil
}

// Publish sends payload to topic, retrying with exponential backoff. It
// gives up early when ctx is done.
func (t *Transport) Publish(ctx context.Context, topic, kind string, payload []byte) error {
	qos := t.QoS(kind)
	var publishErr error
retry:
	for attempt := 0; ; attempt++ {
		token := t.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			t.logger.Debugf("published %s (%d bytes)", topic, len(payload))
			return nil
		}
		t.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt >= t.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			publishErr = ctx.Err()
			break retry
		case <-time.After(t.backoff * time.Duration(1<<attempt)):
		}
	}
	err := fmt.Errorf("publish %s: %w", topic, publishErr)
	monitoring.CaptureException(err, map[string]string{"module": "mqtt", "topic": topic})
	return err
}

// Disconnect gracefully closes the MQTT connection.
func (t *Transport) Disconnect() {
	if t.cli != nil && t.cli.IsConnected() {
		t.cli.Disconnect(250)
	}
}
