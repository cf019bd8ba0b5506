package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// loop runs posted tasks one at a time on the goroutine calling run. Every
// registry mutation and every fired status transition goes through it.
type loop struct {
	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{}
	stopped chan struct{}
	started atomic.Bool
	onPanic func(any)
}

func newLoop(onPanic func(any)) *loop {
	return &loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		onPanic: onPanic,
	}
}

// Post queues fn without blocking. Tasks posted after the loop stopped are
// dropped.
func (l *loop) Post(fn func()) {
	select {
	case <-l.stopped:
		return
	default:
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.tasks
	l.tasks = nil
	return t
}

func (l *loop) run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			for _, fn := range l.take() {
				l.exec(fn)
			}
		}
	}
}

func (l *loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil && l.onPanic != nil {
			l.onPanic(r)
		}
	}()
	fn()
}

// do runs fn on the loop and waits for its result. Cancelling ctx stops the
// wait, not fn.
func (l *loop) do(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	l.Post(func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("event service: panic: %v", r)
				res <- err
				panic(r)
			}
			res <- err
		}()
		err = fn()
	})
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		select {
		case err := <-res:
			return err
		default:
			return ErrStopped
		}
	}
}
