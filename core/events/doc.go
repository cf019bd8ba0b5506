// Package events defines the event lifecycle notifications emitted on the event bus.
//
// Available event types:
//   - OfferedEvent: an event was registered pending for a VEN
//   - RequestEvent: a VEN polled for events
//   - DecisionEvent: a VEN opted in or out of an event
//   - TransitionEvent: an event changed status phase
//   - QueueDropEvent: an outbound delivery was dropped
package events
