// Package simulator runs fake VENs against a VTN over MQTT. Each VEN polls
// for events and answers offers according to an OptStrategy.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/vtn/core/logger"
	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/infra/mqtt"
)

const workers = 4

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Stats counts what a VEN saw and sent.
type Stats struct {
	Offers      atomic.Int64
	OptIns      atomic.Int64
	OptOuts     atomic.Int64
	Silent      atomic.Int64
	Transitions atomic.Int64
}

// SimulatedVEN connects to the broker, polls with oadrRequestEvent and
// answers every new offer with oadrCreatedEvent.
type SimulatedVEN struct {
	ID           string
	Segment      string
	Topics       mqtt.Topics
	Strategy     OptStrategy
	PollInterval time.Duration
	QoS          byte
	Log          logger.Logger
	Stats        Stats

	client publisher
	mu     sync.Mutex
	seen   map[string]uint
	offers chan model.Event
}

// NewSimulatedVEN creates a VEN with the given strategy.
func NewSimulatedVEN(id string, topics mqtt.Topics, strat OptStrategy) *SimulatedVEN {
	return &SimulatedVEN{
		ID:       id,
		Topics:   topics,
		Strategy: strat,
		Log:      logger.NopLogger{},
		seen:     map[string]uint{},
		offers:   make(chan model.Event, 50),
	}
}

// Run connects with cfg and serves until ctx is done.
func (v *SimulatedVEN) Run(ctx context.Context, cfg mqtt.Config) error {
	cfg.ClientID = "sim-" + v.ID
	opts, err := mqtt.NewClientOptions(cfg)
	if err != nil {
		return err
	}
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("%s: connect: %w", v.ID, token.Error())
	}
	defer cli.Disconnect(250)
	v.client = cli

	if token := cli.Subscribe(v.Topics.DistributeEvent(v.ID), v.QoS, func(_ paho.Client, m paho.Message) {
		v.onDistribute(m.Payload())
	}); token.Wait() && token.Error() != nil {
		return fmt.Errorf("%s: subscribe: %w", v.ID, token.Error())
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.worker(ctx)
		}()
	}
	v.poll(ctx)
	wg.Wait()
	return nil
}

func (v *SimulatedVEN) poll(ctx context.Context) {
	interval := v.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		v.publish(v.Topics.RequestEvent(v.ID), mqtt.RequestEventMessage{RequestID: uuid.NewString(), VenID: v.ID})
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// onDistribute queues the offers it has not answered yet. Other statuses
// only count as transitions.
func (v *SimulatedVEN) onDistribute(payload []byte) {
	var msg mqtt.DistributeEventMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		v.Log.Warnf("%s: decode distribute: %v", v.ID, err)
		return
	}
	for _, ev := range msg.Events {
		switch ev.Status() {
		case model.StatusFar, model.StatusNear:
		default:
			v.Stats.Transitions.Add(1)
			continue
		}
		if !v.markSeen(ev) {
			continue
		}
		v.Stats.Offers.Add(1)
		select {
		case v.offers <- ev:
		default:
			v.Log.Warnf("%s: offer queue full, dropping %s", v.ID, ev.ID())
		}
	}
}

func (v *SimulatedVEN) markSeen(ev model.Event) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	mod, ok := v.seen[ev.ID()]
	if ok && mod >= ev.Descriptor.ModificationNumber {
		return false
	}
	v.seen[ev.ID()] = ev.Descriptor.ModificationNumber
	return true
}

func (v *SimulatedVEN) worker(ctx context.Context) {
	for {
		select {
		case ev := <-v.offers:
			v.answer(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (v *SimulatedVEN) answer(ctx context.Context, ev model.Event) {
	opt, ok := v.Strategy.Decide(ctx, v.ID, ev)
	if !ok {
		v.Stats.Silent.Add(1)
		return
	}
	if opt == model.OptIn {
		v.Stats.OptIns.Add(1)
	} else {
		v.Stats.OptOuts.Add(1)
	}
	v.publish(v.Topics.CreatedEvent(v.ID), mqtt.CreatedEventMessage{
		RequestID: uuid.NewString(),
		VenID:     v.ID,
		EventResponses: []model.EventResponse{{
			EventID:            ev.ID(),
			OptType:            opt,
			ModificationNumber: ev.Descriptor.ModificationNumber,
			ResponseCode:       mqtt.CodeOK,
		}},
	})
}

func (v *SimulatedVEN) publish(topic string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		v.Log.Errorf("%s: marshal: %v", v.ID, err)
		return
	}
	token := v.client.Publish(topic, v.QoS, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		v.Log.Warnf("%s: publish timeout on %s", v.ID, topic)
		return
	}
	if err := token.Error(); err != nil {
		v.Log.Warnf("%s: publish on %s: %v", v.ID, topic, err)
	}
}
