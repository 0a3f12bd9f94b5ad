// Package quota caps how many billable calls a process may make.
package quota

import (
	"errors"
	"sync/atomic"
)

// ErrExhausted is returned once the budget is spent.
var ErrExhausted = errors.New("quota exhausted")

// Gate hands out at most Max permits. A zero or negative Max is unlimited.
type Gate struct {
	max  int64
	used atomic.Int64
}

// New creates a Gate allowing limit calls.
func New(limit int64) *Gate {
	return &Gate{max: limit}
}

// Acquire consumes one permit or returns ErrExhausted.
func (g *Gate) Acquire() error {
	if g == nil || g.max <= 0 {
		if g != nil {
			g.used.Add(1)
		}
		return nil
	}
	for {
		used := g.used.Load()
		if used >= g.max {
			return ErrExhausted
		}
		if g.used.CompareAndSwap(used, used+1) {
			return nil
		}
	}
}

// Used reports how many permits were granted.
func (g *Gate) Used() int64 {
	if g == nil {
		return 0
	}
	return g.used.Load()
}

// Remaining reports permits left, or -1 when unlimited.
func (g *Gate) Remaining() int64 {
	if g == nil || g.max <= 0 {
		return -1
	}
	return max(g.max-g.used.Load(), 0)
}
