// Package queue defines the per-VEN outbound delivery contract used by the
// event service and an in-memory implementation of it.
package queue

import (
	"errors"

	"github.com/kilianp07/vtn/core/model"
)

var (
	// ErrQueueFull is returned when a non-blocking enqueue finds no room.
	ErrQueueFull = errors.New("outbound queue full")
	// ErrClosed is returned once the queue has been closed.
	ErrClosed = errors.New("outbound queue closed")
)

// OutboundQueue delivers events to a VEN. Enqueue must never block; bounding
// and backpressure are the implementation's concern.
type OutboundQueue interface {
	Enqueue(venID string, ev model.Event) error
}

// Func adapts a function to OutboundQueue.
type Func func(venID string, ev model.Event) error

// Enqueue calls f.
func (f Func) Enqueue(venID string, ev model.Event) error { return f(venID, ev) }
