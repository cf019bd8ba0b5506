package monitoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder(1)
	r.CaptureException(errors.New("a"), map[string]string{"hook": "decision"})
	r.CaptureException(errors.New("dropped"), nil)

	c := <-r.Captures()
	require.EqualError(t, c.Err, "a")
	assert.Equal(t, "decision", c.Tags["hook"])
	select {
	case <-r.Captures():
		t.Fatal("unexpected capture")
	default:
	}
}

func TestGlobal(t *testing.T) {
	prev := Global()
	defer Init(prev)

	Init(nil)
	assert.Equal(t, prev, Global())

	r := NewRecorder(1)
	Init(r)
	CaptureException(errors.New("boom"), nil)
	Flush(0)
	assert.Len(t, r.Captures(), 1)
	assert.IsType(t, NopMonitor{}, OrNop(nil))
}
