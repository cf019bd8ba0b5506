package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vtn/core/model"
)

func binding(id string) Binding {
	return Binding{
		VenID: "ven-1",
		Event: &model.Event{Descriptor: model.EventDescriptor{EventID: id, EventStatus: model.StatusFar}},
		Callback: func(context.Context, string, string, model.OptType) error {
			return nil
		},
	}
}

func TestRegisterPendingRejectsDuplicates(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterPending(binding("a")))
	assert.ErrorIs(t, r.RegisterPending(binding("a")), ErrDuplicateEventID)

	b, err := r.AcceptPending("a")
	require.NoError(t, err)
	require.NoError(t, r.InsertRunning(b))
	// still unique across both sets
	assert.ErrorIs(t, r.RegisterPending(binding("a")), ErrDuplicateEventID)
	assert.ErrorIs(t, r.InsertRunning(binding("a")), ErrDuplicateEventID)

	p, run := r.Len()
	assert.Equal(t, 0, p)
	assert.Equal(t, 1, run)
}

func TestRegisterPendingRequiresEvent(t *testing.T) {
	r := New()
	assert.Error(t, r.RegisterPending(Binding{VenID: "v"}))
	assert.Error(t, r.RegisterPending(Binding{Event: &model.Event{}}))
}

func TestAcceptPendingMovesOwnership(t *testing.T) {
	r := New()
	orig := binding("a")
	require.NoError(t, r.RegisterPending(orig))

	b, err := r.AcceptPending("a")
	require.NoError(t, err)
	assert.Same(t, orig.Event, b.Event)
	assert.Equal(t, "ven-1", b.VenID)

	_, err = r.AcceptPending("a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, ok := r.PeekPending("a")
	assert.False(t, ok)
}

func TestLookupRunningPops(t *testing.T) {
	r := New()
	require.NoError(t, r.InsertRunning(binding("a")))
	_, ok := r.PeekRunning("a")
	require.True(t, ok)

	_, err := r.LookupRunning("a")
	require.NoError(t, err)
	_, err = r.LookupRunning("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterPending(binding("p")))
	require.NoError(t, r.InsertRunning(binding("r")))

	_, ok := r.Remove("p")
	assert.True(t, ok)
	_, ok = r.Remove("r")
	assert.True(t, ok)
	_, ok = r.Remove("missing")
	assert.False(t, ok)
	p, run := r.Len()
	assert.Zero(t, p+run)
}

func TestSnapshotsAreSortedCopies(t *testing.T) {
	r := New()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, r.RegisterPending(binding(id)))
	}
	snap := r.Pending()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{snap[0].Event.ID(), snap[1].Event.ID(), snap[2].Event.ID()})

	snap[0].Event.Descriptor.EventStatus = model.StatusCancelled
	live, _ := r.PeekPending("a")
	assert.Equal(t, model.StatusFar, live.Event.Status())
	assert.Empty(t, r.Running())
}
