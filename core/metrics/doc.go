// Package metrics defines the sinks recording the lifecycle of demand-response
// events: offers, requests, VEN decisions, status transitions and dropped
// pushes. A sink implements MetricsSink and any of the optional recorder
// interfaces it supports. NewMetricsSink builds sinks from configuration and
// wraps several of them in a MultiSink.
package metrics
