package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Handle controls an armed timer.
type Handle interface {
	// Cancel stops the timer. It returns false if the timer already fired or
	// was cancelled.
	Cancel() bool
}

// Timer is a clock able to run one-shot actions after a delay. A non-positive
// delay runs the action as soon as possible.
type Timer interface {
	Now() time.Time
	Schedule(delay time.Duration, action func()) Handle
}

// Executor runs actions on the owner's loop.
type Executor interface {
	Post(fn func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(fn func())

// Post calls f(fn).
func (f ExecutorFunc) Post(fn func()) { f(fn) }

// Inline runs actions on the calling goroutine.
var Inline Executor = ExecutorFunc(func(fn func()) { fn() })

// Serial runs actions on the calling goroutine, one at a time. Actions must
// not post to the same Serial.
type Serial struct{ mu sync.Mutex }

// Post runs fn while holding the executor's lock.
func (e *Serial) Post(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// RealTimer uses the wall clock and time.AfterFunc.
type RealTimer struct{}

// Now returns the current UTC time.
func (RealTimer) Now() time.Time { return time.Now().UTC() }

// Schedule arms a time.AfterFunc.
func (RealTimer) Schedule(delay time.Duration, action func()) Handle {
	if delay < 0 {
		delay = 0
	}
	return realHandle{t: time.AfterFunc(delay, action)}
}

type realHandle struct{ t *time.Timer }

func (h realHandle) Cancel() bool { return h.t.Stop() }

// ManualTimer is a deterministic Timer driven by Advance. Actions run on the
// goroutine calling Advance, in fire time order.
type ManualTimer struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	armed []*manualEntry
}

type manualEntry struct {
	at     time.Time
	seq    int
	action func()
	owner  *ManualTimer
}

// NewManualTimer returns a ManualTimer starting at start.
func NewManualTimer(start time.Time) *ManualTimer {
	return &ManualTimer{now: start}
}

// Now returns the manual clock's current time.
func (m *ManualTimer) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Schedule arms action at Now()+delay. Actions due at or before the current
// time fire on the next Advance call, including Advance(0).
func (m *ManualTimer) Schedule(delay time.Duration, action func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	e := &manualEntry{at: m.now.Add(delay), seq: m.seq, action: action, owner: m}
	m.armed = append(m.armed, e)
	return e
}

// Armed returns the number of actions waiting to fire.
func (m *ManualTimer) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.armed)
}

// Advance moves the clock forward by d and fires every action that becomes due.
func (m *ManualTimer) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	for {
		m.mu.Lock()
		sort.Slice(m.armed, func(i, j int) bool {
			if m.armed[i].at.Equal(m.armed[j].at) {
				return m.armed[i].seq < m.armed[j].seq
			}
			return m.armed[i].at.Before(m.armed[j].at)
		})
		if len(m.armed) == 0 || m.armed[0].at.After(target) {
			m.now = target
			m.mu.Unlock()
			return
		}
		next := m.armed[0]
		m.armed = m.armed[1:]
		if next.at.After(m.now) {
			m.now = next.at
		}
		m.mu.Unlock()
		next.action()
	}
}

func (e *manualEntry) Cancel() bool {
	m := e.owner
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.armed {
		if a == e {
			m.armed = append(m.armed[:i], m.armed[i+1:]...)
			return true
		}
	}
	return false
}
