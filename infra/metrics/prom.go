package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/vtn/core/metrics"
)

// PromSink records event lifecycle records in Prometheus metrics.
type PromSink struct {
	transitions *prometheus.CounterVec
	decisions   *prometheus.CounterVec
	requests    *prometheus.HistogramVec
	offers      *prometheus.CounterVec
	drops       *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vtn_event_transitions_total",
		Help: "Event status transitions pushed to VENs",
	}, []string{"ven_id", "status"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vtn_event_decisions_total",
		Help: "VEN decisions received in oadrCreatedEvent",
	}, []string{"ven_id", "opt_type", "source"})
	requests := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vtn_request_event_duration_seconds",
		Help:    "Time spent answering oadrRequestEvent",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vtn_events_offered_total",
		Help: "Events registered and offered to VENs",
	}, []string{"ven_id"})
	drops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vtn_queue_drops_total",
		Help: "Event pushes dropped by the outbound queue",
	}, []string{"ven_id"})

	var err error
	if transitions, err = register(reg, transitions); err != nil {
		return nil, err
	}
	if decisions, err = register(reg, decisions); err != nil {
		return nil, err
	}
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if offers, err = register(reg, offers); err != nil {
		return nil, err
	}
	if drops, err = register(reg, drops); err != nil {
		return nil, err
	}
	return &PromSink{
		transitions: transitions,
		decisions:   decisions,
		requests:    requests,
		offers:      offers,
		drops:       drops,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordTransition counts the transition under its target status.
func (s *PromSink) RecordTransition(r coremetrics.TransitionRecord) error {
	s.transitions.WithLabelValues(r.VenID, r.To).Inc()
	return nil
}

// RecordDecision counts the decision.
func (s *PromSink) RecordDecision(r coremetrics.DecisionRecord) error {
	s.decisions.WithLabelValues(r.VenID, r.OptType, r.Source).Inc()
	return nil
}

// RecordRequest observes the request latency.
func (s *PromSink) RecordRequest(r coremetrics.RequestRecord) error {
	outcome := "ok"
	if r.Error != "" {
		outcome = "error"
	}
	s.requests.WithLabelValues(outcome).Observe(r.Latency.Seconds())
	return nil
}

// RecordOffer counts offered events.
func (s *PromSink) RecordOffer(r coremetrics.OfferRecord) error {
	s.offers.WithLabelValues(r.VenID).Inc()
	return nil
}

// RecordQueueDrop counts dropped pushes.
func (s *PromSink) RecordQueueDrop(r coremetrics.QueueDropRecord) error {
	s.drops.WithLabelValues(r.VenID).Inc()
	return nil
}
