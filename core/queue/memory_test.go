package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vtn/core/model"
)

func ev(id string) model.Event {
	return model.Event{Descriptor: model.EventDescriptor{EventID: id}}
}

func TestMemoryQueuePerVEN(t *testing.T) {
	q := NewMemoryQueue(4)
	require.NoError(t, q.Enqueue("ven-a", ev("1")))
	require.NoError(t, q.Enqueue("ven-b", ev("2")))
	require.NoError(t, q.Enqueue("ven-a", ev("3")))

	assert.Equal(t, 2, q.Len("ven-a"))
	assert.Equal(t, 1, q.Len("ven-b"))
	assert.Equal(t, 0, q.Len("ven-c"))

	got := q.Drain("ven-a")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID())
	assert.Equal(t, "3", got[1].ID())
	assert.Empty(t, q.Drain("ven-a"))
	assert.Nil(t, q.Drain("unknown"))

	assert.Equal(t, "2", (<-q.Receive("ven-b")).ID())
}

func TestMemoryQueueFullDoesNotBlock(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Enqueue("ven", ev("1")))
	assert.ErrorIs(t, q.Enqueue("ven", ev("2")), ErrQueueFull)
	assert.Equal(t, 1, q.Len("ven"))
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue(0)
	ch := q.Receive("ven")
	require.NoError(t, q.Enqueue("ven", ev("1")))
	q.Close()
	q.Close()
	assert.ErrorIs(t, q.Enqueue("ven", ev("2")), ErrClosed)

	first, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, "1", first.ID())
	_, ok = <-ch
	assert.False(t, ok)
}

func TestFuncAdapter(t *testing.T) {
	var got []string
	var q OutboundQueue = Func(func(venID string, e model.Event) error {
		got = append(got, venID+"/"+e.ID())
		return nil
	})
	require.NoError(t, q.Enqueue("ven", ev("x")))
	assert.Equal(t, []string{"ven/x"}, got)
}
