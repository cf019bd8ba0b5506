package metrics

import (
	"context"

	"github.com/kilianp07/vtn/core/events"
	"github.com/kilianp07/vtn/core/logger"
	coremetrics "github.com/kilianp07/vtn/core/metrics"
	"github.com/kilianp07/vtn/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled or the bus is closed. The returned
// channel is closed once the collector has stopped.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
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
				if err := record(sink, ev); err != nil {
					log.Warnf("metrics sink: %v", err)
				}
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

func record(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.TransitionEvent:
		return sink.RecordTransition(coremetrics.TransitionRecord{
			VenID:              e.VenID,
			EventID:            e.EventID,
			From:               e.From.String(),
			To:                 e.To.String(),
			ModificationNumber: e.ModificationNumber,
			Time:               e.Time,
		})
	case events.DecisionEvent:
		if r, ok := sink.(coremetrics.DecisionRecorder); ok {
			return r.RecordDecision(coremetrics.DecisionRecord{
				VenID:   e.VenID,
				EventID: e.EventID,
				OptType: e.OptType.String(),
				Source:  e.Source,
				Error:   errString(e.Err),
				Time:    e.Time,
			})
		}
	case events.RequestEvent:
		if r, ok := sink.(coremetrics.RequestRecorder); ok {
			return r.RecordRequest(coremetrics.RequestRecord{
				VenID:   e.VenID,
				Events:  e.Events,
				Latency: e.Latency,
				Error:   errString(e.Err),
				Time:    e.Time,
			})
		}
	case events.OfferedEvent:
		if r, ok := sink.(coremetrics.OfferRecorder); ok {
			return r.RecordOffer(coremetrics.OfferRecord{
				VenID:    e.VenID,
				EventID:  e.Event.ID(),
				Priority: e.Event.Descriptor.Priority,
				Time:     e.Time,
			})
		}
	case events.QueueDropEvent:
		if r, ok := sink.(coremetrics.QueueDropRecorder); ok {
			return r.RecordQueueDrop(coremetrics.QueueDropRecord{
				VenID:   e.VenID,
				EventID: e.EventID,
				Reason:  errString(e.Err),
				Time:    e.Time,
			})
		}
	}
	return nil
}
