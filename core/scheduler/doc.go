// Package scheduler advances accepted events through their status phases.
//
// For every accepted event it arms up to three one-shot timers, computed from
// the event's active period, that move the event to near, active and
// completed. Each fired transition is pushed onto the VEN's outbound queue.
// Timers run through an Executor so that transitions are applied on the same
// loop that mutates the event registry.
package scheduler
