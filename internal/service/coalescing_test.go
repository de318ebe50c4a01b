package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/radarweather/radar-service/internal/models"
)

// TestGetOrDo_SingleCaller verifies a lone caller executes fn and is not
// marked shared.
func TestGetOrDo_SingleCaller(t *testing.T) {
	rc := newRequestCoalescer()
	want := models.RadarPayload{Timestamp: "2026-08-23T12:00:00Z"}

	got, shared, err := rc.GetOrDo(context.Background(), "slot", func() (models.RadarPayload, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("GetOrDo() error = %v", err)
	}
	if shared {
		t.Error("lone caller reported shared = true")
	}
	if got.Timestamp != want.Timestamp {
		t.Errorf("payload = %+v, want %+v", got, want)
	}
}

// TestGetOrDo_ConcurrentCallersShareOneRun verifies only one fn execution
// happens for concurrent callers on the same key, and waiters see the
// executor's result and error.
func TestGetOrDo_ConcurrentCallersShareOneRun(t *testing.T) {
	rc := newRequestCoalescer()
	var executions atomic.Int64
	release := make(chan struct{})
	wantErr := errors.New("pipeline failed")

	const callers = 10
	var wg sync.WaitGroup
	sharedCount := atomic.Int64{}
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, shared, err := rc.GetOrDo(context.Background(), "slot", func() (models.RadarPayload, error) {
				executions.Add(1)
				<-release
				return models.RadarPayload{}, wantErr
			})
			if shared {
				sharedCount.Add(1)
			}
			if !errors.Is(err, wantErr) {
				t.Errorf("GetOrDo() error = %v, want %v", err, wantErr)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := executions.Load(); got != 1 {
		t.Errorf("fn executed %d times, want 1", got)
	}
	if got := sharedCount.Load(); got != callers-1 {
		t.Errorf("shared callers = %d, want %d", got, callers-1)
	}
}

// TestGetOrDo_DistinctKeysRunIndependently verifies runs for different slots
// do not coalesce.
func TestGetOrDo_DistinctKeysRunIndependently(t *testing.T) {
	rc := newRequestCoalescer()
	var executions atomic.Int64
	release := make(chan struct{})

	var wg sync.WaitGroup
	for _, key := range []string{"slot-a", "slot-b"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, _, _ = rc.GetOrDo(context.Background(), key, func() (models.RadarPayload, error) {
				executions.Add(1)
				<-release
				return models.RadarPayload{}, nil
			})
		}(key)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := executions.Load(); got != 2 {
		t.Errorf("fn executed %d times for 2 keys, want 2", got)
	}
}

// TestGetOrDo_WaiterCancellation verifies a canceled waiter exits with the
// context error while the executing run completes for itself.
func TestGetOrDo_WaiterCancellation(t *testing.T) {
	rc := newRequestCoalescer()
	release := make(chan struct{})
	started := make(chan struct{})

	execDone := make(chan error, 1)
	go func() {
		_, _, err := rc.GetOrDo(context.Background(), "slot", func() (models.RadarPayload, error) {
			close(started)
			<-release
			return models.RadarPayload{Timestamp: "done"}, nil
		})
		execDone <- err
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	waiterDone := make(chan error, 1)
	go func() {
		_, shared, err := rc.GetOrDo(ctx, "slot", func() (models.RadarPayload, error) {
			t.Error("waiter executed fn")
			return models.RadarPayload{}, nil
		})
		if !shared {
			t.Error("waiter not marked shared")
		}
		waiterDone <- err
	}()

	// Cancel the waiter while the run is still blocked.
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-waiterDone:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("waiter error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("canceled waiter did not return")
	}

	close(release)
	if err := <-execDone; err != nil {
		t.Errorf("executor error = %v, want nil despite waiter cancellation", err)
	}
}
