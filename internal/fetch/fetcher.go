package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/radarweather/radar-service/internal/circuitbreaker"
	"github.com/radarweather/radar-service/internal/observability"
)

// Fetcher downloads the compressed snapshot to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

var (
	// ErrRetriesExhausted wraps the last attempt failure after the retry budget is spent.
	ErrRetriesExhausted = errors.New("snapshot fetch retries exhausted")
	// ErrUpstreamStatus marks a non-2xx response from the source.
	ErrUpstreamStatus = errors.New("upstream returned error status")
)

// HTTPFetcher streams the snapshot to disk with bounded retries. The download
// lands in a sibling temp file and is renamed over dest only once complete, so
// a failed refetch never corrupts a previously good artifact.
type HTTPFetcher struct {
	client     *http.Client
	timeout    time.Duration
	attempts   int
	retryDelay time.Duration
	breaker    *circuitbreaker.CircuitBreaker
}

// NewHTTPFetcher creates an HTTPFetcher. timeout bounds each attempt;
// attempts is the total attempt budget (not extra retries); retryDelay is the
// fixed inter-attempt delay.
func NewHTTPFetcher(timeout time.Duration, attempts int, retryDelay time.Duration) *HTTPFetcher {
	if attempts <= 0 {
		attempts = 3
	}
	return &HTTPFetcher{
		// Client timeout stays unset; the per-attempt context carries the
		// deadline so a slow multi-hundred-MB body is not cut off mid-stream
		// by a response-header timeout.
		client:     &http.Client{},
		timeout:    timeout,
		attempts:   attempts,
		retryDelay: retryDelay,
	}
}

// SetCircuitBreaker wires a breaker around individual download attempts.
func (f *HTTPFetcher) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	f.breaker = cb
}

// Fetch downloads url into dest. Every transport failure (dial error,
// timeout, non-2xx) consumes one attempt; after the budget is spent the last
// failure is returned wrapped in ErrRetriesExhausted.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, dest string) error {
	var lastErr error

	for attempt := 0; attempt < f.attempts; attempt++ {
		if attempt > 0 {
			observability.SnapshotFetchRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.retryDelay):
			}
		}

		var err error
		if f.breaker != nil {
			err = f.breaker.Call(ctx, func() error {
				return f.download(ctx, url, dest)
			})
		} else {
			err = f.download(ctx, url, dest)
		}
		if err == nil {
			return nil
		}
		lastErr = err
	}

	observability.SnapshotFetchErrorsTotal.WithLabelValues(string(CategorizeError(lastErr))).Inc()
	return fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

// download performs one streaming attempt: GET, copy to temp, rename.
func (f *HTTPFetcher) download(ctx context.Context, url, dest string) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		observability.SnapshotFetchesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.SnapshotFetchesTotal.WithLabelValues("error").Inc()
		observability.SnapshotFetchDuration.WithLabelValues("error").Observe(duration)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.SnapshotFetchesTotal.WithLabelValues(status).Inc()
		observability.SnapshotFetchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamStatus, resp.StatusCode)
	}

	if err := streamToFile(resp.Body, dest); err != nil {
		observability.SnapshotFetchesTotal.WithLabelValues("error").Inc()
		observability.SnapshotFetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return err
	}

	observability.SnapshotFetchesTotal.WithLabelValues(status).Inc()
	observability.SnapshotFetchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return nil
}

// streamToFile copies body into a temp file next to dest and renames it over
// dest once the copy completes. The temp lives in the same directory so the
// rename stays on one filesystem and is atomic.
func streamToFile(body io.Reader, dest string) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("stream response body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit download: %w", err)
	}
	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
