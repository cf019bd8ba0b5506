// Package monitoring reports failures that operators must see, such as
// business hooks returning errors or panicking.
package monitoring

import "time"

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

// OrNop returns m, or a NopMonitor when m is nil.
func OrNop(m Monitor) Monitor {
	if m == nil {
		return NopMonitor{}
	}
	return m
}

// Recorder keeps captured errors in memory. Tests use it to assert on
// reported failures.
type Recorder struct {
	ch chan Capture
}

// Capture is one error seen by a Recorder.
type Capture struct {
	Err  error
	Tags map[string]string
}

// NewRecorder returns a Recorder buffering up to n captures.
func NewRecorder(n int) *Recorder { return &Recorder{ch: make(chan Capture, n)} }

func (r *Recorder) CaptureException(err error, tags map[string]string) {
	select {
	case r.ch <- Capture{Err: err, Tags: tags}:
	default:
	}
}

func (r *Recorder) Recover()            {}
func (r *Recorder) Flush(time.Duration) {}

// Captures returns the channel receiving captured errors.
func (r *Recorder) Captures() <-chan Capture { return r.ch }

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// Global returns the monitor installed by Init.
func Global() Monitor { return current }

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if current != nil {
		current.CaptureException(err, tags)
	}
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	if current != nil {
		current.Flush(d)
	}
}
