// Package cache owns the single-slot snapshot cache: the file-age gate that
// decides when a refetch is due, the last-payload store, and the optional
// warmer that keeps the slot fresh.
package cache

import (
	"os"
	"time"
)

// Gate decides whether the on-disk grid artifact is stale. Freshness is the
// artifact's modification time measured against the upstream polling cadence;
// refetching faster than the source refreshes buys nothing but bandwidth.
type Gate struct {
	now func() time.Time
}

// NewGate creates a Gate using the wall clock.
func NewGate() *Gate {
	return &Gate{now: time.Now}
}

// NewGateWithClock creates a Gate with an injectable clock for tests.
func NewGateWithClock(now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{now: now}
}

// ShouldRefetch reports whether path is absent or at least maxAge old.
// Pure query, no side effects. A file exactly maxAge old counts as stale.
func (g *Gate) ShouldRefetch(path string, maxAge time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return g.now().Sub(info.ModTime()) >= maxAge
}
