package mqtt

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kilianp07/vtn/core/logger"
	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/core/queue"
)

type delivery struct {
	venID string
	event model.Event
}

// Outbox implements queue.OutboundQueue on top of a Broker. Enqueue only
// buffers, per VEN; Run publishes buffered events as oadrDistributeEvent
// messages, taking VENs in turn.
type Outbox struct {
	broker Broker
	topics Topics
	vtnID  string
	size   int
	log    logger.Logger

	mu      sync.Mutex
	pending map[string][]model.Event
	order   []string
	wake    chan struct{}
	closed  bool
}

var _ queue.OutboundQueue = (*Outbox)(nil)

// NewOutbox returns an Outbox buffering up to size events per VEN.
func NewOutbox(b Broker, topics Topics, vtnID string, size int, log logger.Logger) *Outbox {
	if size <= 0 {
		size = queue.DefaultSize
	}
	return &Outbox{
		broker:  b,
		topics:  topics,
		vtnID:   vtnID,
		size:    size,
		log:     logger.OrNop(log),
		pending: make(map[string][]model.Event),
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue buffers ev for venID. It returns queue.ErrQueueFull when that VEN's
// buffer has no room and queue.ErrClosed after Close.
func (o *Outbox) Enqueue(venID string, ev model.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return queue.ErrClosed
	}
	buf := o.pending[venID]
	if len(buf) >= o.size {
		return queue.ErrQueueFull
	}
	if len(buf) == 0 {
		o.order = append(o.order, venID)
	}
	o.pending[venID] = append(buf, ev)
	o.signal()
	return nil
}

func (o *Outbox) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest event of the VEN whose turn it is.
func (o *Outbox) next() (d delivery, ok, closed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.order) == 0 {
		return delivery{}, false, o.closed
	}
	venID := o.order[0]
	o.order = o.order[1:]
	buf := o.pending[venID]
	d = delivery{venID: venID, event: buf[0]}
	if len(buf) == 1 {
		delete(o.pending, venID)
	} else {
		o.pending[venID] = buf[1:]
		o.order = append(o.order, venID)
	}
	return d, true, o.closed
}

// Run publishes buffered events until ctx is done or the outbox is closed
// and drained.
func (o *Outbox) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		d, ok, closed := o.next()
		if ok {
			o.publish(ctx, d)
			continue
		}
		if closed {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-o.wake:
		}
	}
}

func (o *Outbox) publish(ctx context.Context, d delivery) {
	payload, err := json.Marshal(DistributeEventMessage{VTNID: o.vtnID, Events: []model.Event{d.event}})
	if err != nil {
		o.log.Errorf("encode event %s: %v", d.event.ID(), err)
		return
	}
	if err := o.broker.Publish(ctx, o.topics.DistributeEvent(d.venID), QoSDistribute, payload); err != nil {
		o.log.Errorf("deliver event %s to %s: %v", d.event.ID(), d.venID, err)
		return
	}
	o.log.Debugw("event delivered", map[string]any{
		"ven_id":   d.venID,
		"event_id": d.event.ID(),
		"status":   d.event.Status().String(),
	})
}

// Close stops accepting events. Run returns once the buffer is drained.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.signal()
}
