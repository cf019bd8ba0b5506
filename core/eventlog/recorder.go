package eventlog

import (
	"context"
	"time"

	"github.com/kilianp07/vtn/core/events"
	"github.com/kilianp07/vtn/core/logger"
	"github.com/kilianp07/vtn/internal/eventbus"
)

// StartRecorder appends every lifecycle event published on bus to store until
// ctx is done or the bus is closed. The returned channel is closed once the
// recorder has stopped.
func StartRecorder(ctx context.Context, bus eventbus.EventBus, store LogStore, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || store == nil {
		close(done)
		return done
	}
	log = logger.OrNop(log)
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				rec, ok := FromEvent(ev)
				if !ok {
					continue
				}
				wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				if err := store.Append(wctx, rec); err != nil {
					log.Errorf("event log append: %v", err)
				}
				cancel()
			}
		}
	}()
	return done
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// FromEvent converts a lifecycle event into a LogRecord.
func FromEvent(ev eventbus.Event) (LogRecord, bool) {
	switch e := ev.(type) {
	case events.OfferedEvent:
		return LogRecord{
			Timestamp: e.Time, Kind: KindOffer, VenID: e.VenID, EventID: e.Event.ID(),
			To: e.Event.Status().String(), ModificationNumber: e.Event.Descriptor.ModificationNumber,
		}, true
	case events.RequestEvent:
		return LogRecord{
			Timestamp: e.Time, Kind: KindRequest, VenID: e.VenID, Events: e.Events, Error: errString(e.Err),
		}, true
	case events.DecisionEvent:
		return LogRecord{
			Timestamp: e.Time, Kind: KindDecision, VenID: e.VenID, EventID: e.EventID,
			OptType: e.OptType.String(), Source: e.Source, Error: errString(e.Err),
		}, true
	case events.TransitionEvent:
		return LogRecord{
			Timestamp: e.Time, Kind: KindTransition, VenID: e.VenID, EventID: e.EventID,
			From: e.From.String(), To: e.To.String(), ModificationNumber: e.ModificationNumber,
		}, true
	case events.QueueDropEvent:
		return LogRecord{
			Timestamp: e.Time, Kind: KindQueueDrop, VenID: e.VenID, EventID: e.EventID, Error: errString(e.Err),
		}, true
	}
	return LogRecord{}, false
}
