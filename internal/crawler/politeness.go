package crawler

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// visitTracker records listing IDs already dispatched in the current session.
type visitTracker interface {
	MarkIfNew(id string) bool
}

type concurrentVisitTracker struct {
	seen sync.Map
}

func newConcurrentVisitTracker() *concurrentVisitTracker {
	return &concurrentVisitTracker{}
}

// MarkIfNew stores the id if it has not been seen before and returns true.
func (t *concurrentVisitTracker) MarkIfNew(id string) bool {
	if id == "" {
		return false
	}
	_, loaded := t.seen.LoadOrStore(id, struct{}{})
	return !loaded
}

// Pauser sleeps between requests. Tests swap in a recorder.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// TimerPauser sleeps on a timer and wakes early when ctx is done.
type TimerPauser struct{}

// Pause blocks for delay or until ctx ends.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// DelayRange is an inclusive [Min, Max] window for randomized pacing.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Pick returns a uniformly random duration inside the window.
func (r DelayRange) Pick() time.Duration {
	return jitterBetween(r.Min, r.Max, rand.Float64())
}
