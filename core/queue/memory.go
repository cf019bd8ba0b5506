package queue

import (
	"sync"

	"github.com/kilianp07/vtn/core/model"
)

// DefaultSize is the per-VEN capacity used when none is configured.
const DefaultSize = 32

// MemoryQueue keeps one buffered channel per VEN.
type MemoryQueue struct {
	mu     sync.Mutex
	size   int
	queues map[string]chan model.Event
	closed bool
}

// NewMemoryQueue returns a MemoryQueue holding up to size events per VEN.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = DefaultSize
	}
	return &MemoryQueue{size: size, queues: make(map[string]chan model.Event)}
}

func (q *MemoryQueue) channel(venID string) chan model.Event {
	ch, ok := q.queues[venID]
	if !ok {
		ch = make(chan model.Event, q.size)
		q.queues[venID] = ch
	}
	return ch
}

// Enqueue adds ev to the VEN's queue without blocking.
func (q *MemoryQueue) Enqueue(venID string, ev model.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.channel(venID) <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Receive returns the channel carrying the VEN's events.
func (q *MemoryQueue) Receive(venID string) <-chan model.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.channel(venID)
}

// Drain removes and returns every event currently queued for the VEN.
func (q *MemoryQueue) Drain(venID string) []model.Event {
	q.mu.Lock()
	ch, ok := q.queues[venID]
	q.mu.Unlock()
	if !ok {
		return nil
	}
	var out []model.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Len returns the number of events waiting for the VEN.
func (q *MemoryQueue) Len(venID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ch, ok := q.queues[venID]; ok {
		return len(ch)
	}
	return 0
}

// Close rejects further enqueues and closes every VEN channel.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for _, ch := range q.queues {
		close(ch)
	}
}
