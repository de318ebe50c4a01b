package service

import (
	"context"
	"sync"

	"github.com/radarweather/radar-service/internal/models"
)

// inFlightRun is a pipeline execution that later callers may wait on.
// result and err are written before done closes and read only after.
type inFlightRun struct {
	done   chan struct{}
	result models.RadarPayload
	err    error
}

// requestCoalescer collapses concurrent pipeline runs for the same artifact
// slot into one. The first caller executes; the rest wait for its result.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRun
}

func newRequestCoalescer() *requestCoalescer {
	return &requestCoalescer{inFlight: make(map[string]*inFlightRun)}
}

// GetOrDo runs fn unless a run for key is already in flight, in which case it
// waits for that run. shared reports whether the caller piggybacked on
// another caller's run. A waiter's context cancellation releases only that
// waiter; the executing run continues for the others.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func() (models.RadarPayload, error)) (result models.RadarPayload, shared bool, err error) {
	rc.mu.Lock()
	if req, ok := rc.inFlight[key]; ok {
		rc.mu.Unlock()
		select {
		case <-req.done:
			return req.result, true, req.err
		case <-ctx.Done():
			return models.RadarPayload{}, true, ctx.Err()
		}
	}

	req := &inFlightRun{done: make(chan struct{})}
	rc.inFlight[key] = req
	rc.mu.Unlock()

	req.result, req.err = fn()

	rc.mu.Lock()
	delete(rc.inFlight, key)
	rc.mu.Unlock()
	close(req.done)

	return req.result, false, req.err
}
