package simulator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/kilianp07/vtn/core/model"
)

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

var rng = &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}

// OptStrategy decides how a VEN answers an offered event. ok is false when
// the VEN stays silent.
type OptStrategy interface {
	Decide(ctx context.Context, venID string, ev model.Event) (opt model.OptType, ok bool)
}

// AutoOpt opts in to every event after an optional fixed delay.
type AutoOpt struct {
	Delay time.Duration
}

// Decide implements OptStrategy.
func (a AutoOpt) Decide(ctx context.Context, _ string, _ model.Event) (model.OptType, bool) {
	if !wait(ctx, a.Delay) {
		return "", false
	}
	return model.OptIn, true
}

// RandomOpt ignores offers with DropRate probability and otherwise opts out
// with OptOutRate probability, after waiting Delay.
type RandomOpt struct {
	Delay      time.Duration
	DropRate   float64
	OptOutRate float64
}

// Decide implements OptStrategy.
func (r RandomOpt) Decide(ctx context.Context, _ string, _ model.Event) (model.OptType, bool) {
	if r.DropRate > 0 && rng.Float64() < r.DropRate {
		return "", false
	}
	if !wait(ctx, r.Delay) {
		return "", false
	}
	if r.OptOutRate > 0 && rng.Float64() < r.OptOutRate {
		return model.OptOut, true
	}
	return model.OptIn, true
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
