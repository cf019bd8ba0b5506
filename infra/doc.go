// Package infra holds the adapters behind the core interfaces: the MQTT
// transport, metrics sinks, Sentry monitoring and the zerolog logger.
package infra
