package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	pendingEvents  prometheus.Gauge
	runningEvents  prometheus.Gauge
	hookFailures   *prometheus.CounterVec
	responsesTotal *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Gauge, prometheus.Gauge, *prometheus.CounterVec, *prometheus.CounterVec) {
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vtn_pending_events",
		Help: "Events offered to VENs and awaiting a decision",
	})
	running := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vtn_running_events",
		Help: "Accepted events tracked by the status scheduler",
	})
	hooks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vtn_hook_failures_total",
			Help: "Business hook invocations that returned an error or panicked",
		},
		[]string{"hook"},
	)
	responses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vtn_responses_total",
			Help: "Event response entries processed, by outcome",
		},
		[]string{"outcome"},
	)
	return pending, running, hooks, responses
}

func init() {
	pendingEvents, runningEvents, hookFailures, responsesTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers the service metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(pendingEvents, runningEvents, hookFailures, responsesTotal)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	pendingEvents, runningEvents, hookFailures, responsesTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

const (
	outcomeAccepted  = "accepted"
	outcomeDeclined  = "declined"
	outcomeConfirmed = "confirmed"
	outcomeUnknown   = "unknown"
	outcomeInvalid   = "invalid"
	outcomeExternal  = "external"
)
