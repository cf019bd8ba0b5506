// Package registry tracks events in flight between the VTN and its VENs.
//
// An event is either pending (offered, awaiting the VEN's decision) or running
// (accepted and status-tracked), never both. A Registry is not safe for
// concurrent use: the event service mutates it from its dispatch loop only.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/kilianp07/vtn/core/model"
)

var (
	// ErrDuplicateEventID is returned when an id is already tracked.
	ErrDuplicateEventID = errors.New("duplicate event id")
	// ErrNotFound is returned when an id is not present in the queried set.
	ErrNotFound = errors.New("event not tracked")
)

// Callback is notified of the VEN's decision for a pending event.
type Callback func(ctx context.Context, venID, eventID string, opt model.OptType) error

// Binding pairs a tracked event with the callback registered alongside it.
type Binding struct {
	// VenID is the VEN the event was offered to.
	VenID    string
	Event    *model.Event
	Callback Callback
}

// Registry owns the pending and running sets.
type Registry struct {
	pending map[string]Binding
	running map[string]Binding
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		pending: make(map[string]Binding),
		running: make(map[string]Binding),
	}
}

func (r *Registry) tracked(id string) bool {
	_, p := r.pending[id]
	_, run := r.running[id]
	return p || run
}

func checkBinding(b Binding) error {
	if b.Event == nil {
		return fmt.Errorf("registry: binding without event")
	}
	if b.Event.ID() == "" {
		return fmt.Errorf("registry: event without id")
	}
	return nil
}

// RegisterPending inserts b into the pending set.
func (r *Registry) RegisterPending(b Binding) error {
	if err := checkBinding(b); err != nil {
		return err
	}
	id := b.Event.ID()
	if r.tracked(id) {
		return fmt.Errorf("register %s: %w", id, ErrDuplicateEventID)
	}
	r.pending[id] = b
	return nil
}

// AcceptPending removes the pending entry for id and returns it. The caller
// decides whether it moves to running.
func (r *Registry) AcceptPending(id string) (Binding, error) {
	b, ok := r.pending[id]
	if !ok {
		return Binding{}, fmt.Errorf("pending %s: %w", id, ErrNotFound)
	}
	delete(r.pending, id)
	return b, nil
}

// InsertRunning inserts b into the running set.
func (r *Registry) InsertRunning(b Binding) error {
	if err := checkBinding(b); err != nil {
		return err
	}
	id := b.Event.ID()
	if r.tracked(id) {
		return fmt.Errorf("run %s: %w", id, ErrDuplicateEventID)
	}
	r.running[id] = b
	return nil
}

// LookupRunning pops the running entry for id. The entry is no longer tracked
// unless the caller inserts it again.
func (r *Registry) LookupRunning(id string) (Binding, error) {
	b, ok := r.running[id]
	if !ok {
		return Binding{}, fmt.Errorf("running %s: %w", id, ErrNotFound)
	}
	delete(r.running, id)
	return b, nil
}

// PeekPending returns the pending entry for id without removing it.
func (r *Registry) PeekPending(id string) (Binding, bool) {
	b, ok := r.pending[id]
	return b, ok
}

// PeekRunning returns the running entry for id without removing it.
func (r *Registry) PeekRunning(id string) (Binding, bool) {
	b, ok := r.running[id]
	return b, ok
}

// Remove drops id from whichever set holds it.
func (r *Registry) Remove(id string) (Binding, bool) {
	if b, ok := r.pending[id]; ok {
		delete(r.pending, id)
		return b, true
	}
	if b, ok := r.running[id]; ok {
		delete(r.running, id)
		return b, true
	}
	return Binding{}, false
}

// Len returns the size of both sets.
func (r *Registry) Len() (pending, running int) {
	return len(r.pending), len(r.running)
}

// Pending returns a snapshot of the pending set ordered by event id. Events
// are copies and may be handed to other goroutines.
func (r *Registry) Pending() []Binding { return snapshot(r.pending) }

// Running returns a snapshot of the running set ordered by event id.
func (r *Registry) Running() []Binding { return snapshot(r.running) }

func snapshot(m map[string]Binding) []Binding {
	out := lo.MapToSlice(m, func(_ string, b Binding) Binding {
		b.Event = b.Event.Clone()
		return b
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Event.ID() < out[j].Event.ID() })
	return out
}
