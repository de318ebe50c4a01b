// Package health tracks request outcomes in sliding windows and the process
// shutdown flag. One tracker feeds every lifecycle signal: error rate drives
// degraded, denial volume drives overloaded, raw traffic drives idle.
package health

import (
	"sync"
	"sync/atomic"
	"time"
)

var (
	defaultTracker Tracker
	shuttingDown   atomic.Bool
)

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received;
// the health handler reports shutting-down with 503 while true.
func SetShuttingDown(v bool) { shuttingDown.Store(v) }

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool { return shuttingDown.Load() }

// RecordSuccess records a successful radar request.
func RecordSuccess() { defaultTracker.Record(outcomeSuccess) }

// RecordError records a failed radar request (pipeline error at any stage).
func RecordError() { defaultTracker.Record(outcomeError) }

// RecordDenial records a rate-limit denial (429).
func RecordDenial() { defaultTracker.Record(outcomeDenied) }

// RecordRequest records inbound traffic that counts toward idle detection.
func RecordRequest() { defaultTracker.Record(outcomeRequest) }

// ErrorRate returns (errorCount, successCount+errorCount) within the window.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// RequestCount returns traffic recorded via RecordRequest within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.Count(outcomeRequest, window)
}

// DenialCount returns rate-limit denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.Count(outcomeDenied, window)
}

// OutcomeCount returns successes+errors+denials within the window.
func OutcomeCount(window time.Duration) int {
	return defaultTracker.Count(outcomeSuccess, window) +
		defaultTracker.Count(outcomeError, window) +
		defaultTracker.Count(outcomeDenied, window)
}

// Reset clears all recorded outcomes and the shutdown flag. For tests only.
func Reset() {
	defaultTracker.Reset()
	shuttingDown.Store(false)
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeError
	outcomeDenied
	outcomeRequest
	outcomeKinds
)

// Tracker keeps per-outcome timestamp slices pruned to a 30 minute horizon.
type Tracker struct {
	mu    sync.Mutex
	times [outcomeKinds][]time.Time
}

// Record appends the current time under the given outcome.
func (t *Tracker) Record(o outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.times[o] = append(t.times[o], now)
	t.pruneLocked(now)
}

// Count returns outcomes of kind o within the window ending now.
func (t *Tracker) Count(o outcome, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.times[o], time.Now().Add(-window))
}

// ErrorRate returns (errors, errors+successes) within the window. Denials are
// excluded; a 429 is load shedding, not a service failure.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	e := countSince(t.times[outcomeError], cutoff)
	s := countSince(t.times[outcomeSuccess], cutoff)
	return e, e + s
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.times {
		t.times[i] = nil
	}
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than the retention horizon. Must be
// called with the mutex held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-30 * time.Minute)
	for i := range t.times {
		times := t.times[i]
		k := 0
		for ; k < len(times) && times[k].Before(cutoff); k++ {
		}
		if k > 0 {
			t.times[i] = append(times[:0], times[k:]...)
		}
	}
}
