package mqtt

import (
	"strings"

	"github.com/kilianp07/vtn/core/service"
)

// DefaultPrefix is the topic root used when none is configured.
const DefaultPrefix = "openadr"

// Topics builds the per-VEN topic names. Every topic has the form
// <prefix>/<ven_id>/<operation>.
type Topics struct {
	Prefix string
}

func (t Topics) topic(venID, op string) string {
	return t.Prefix + "/" + venID + "/" + op
}

// RequestEvent is where a VEN asks for its events.
func (t Topics) RequestEvent(venID string) string { return t.topic(venID, service.OpRequestEvent) }

// CreatedEvent is where a VEN reports its opt decisions.
func (t Topics) CreatedEvent(venID string) string { return t.topic(venID, service.OpCreatedEvent) }

// DistributeEvent carries events and status changes to a VEN.
func (t Topics) DistributeEvent(venID string) string {
	return t.topic(venID, service.OpDistributeEvent)
}

// Response acknowledges a VEN's oadrCreatedEvent.
func (t Topics) Response(venID string) string { return t.topic(venID, service.OpResponse) }

// Inbound returns the wildcard subscriptions for op across all VENs.
func (t Topics) Inbound(op string) string { return t.topic("+", op) }

// Parse splits a topic into VEN id and operation. ok is false when the topic
// is not under the prefix or is malformed.
func (t Topics) Parse(topic string) (venID, op string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/")
	if !found {
		return "", "", false
	}
	venID, op, found = strings.Cut(rest, "/")
	if !found || venID == "" || op == "" || strings.Contains(op, "/") {
		return "", "", false
	}
	return venID, op, true
}
