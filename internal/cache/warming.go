package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radarweather/radar-service/internal/models"
	"github.com/radarweather/radar-service/internal/observability"
)

// SnapshotFetcher is implemented by the service layer. Declared here to avoid
// a circular dependency on the service package.
type SnapshotFetcher interface {
	GetRadar(ctx context.Context) (models.RadarPayload, error)
}

// Warmer pre-runs the pipeline so the first request after startup, and
// requests landing just after the cache window expires, do not pay the full
// fetch/decode latency.
type Warmer struct {
	fetcher SnapshotFetcher
	logger  *zap.Logger
}

// NewWarmer creates a Warmer using the given fetcher and logger.
func NewWarmer(fetcher SnapshotFetcher, logger *zap.Logger) *Warmer {
	return &Warmer{fetcher: fetcher, logger: logger}
}

// Warm runs the pipeline once. The cache gate still applies, so a warm run
// against a fresh slot is a no-op beyond a memory read.
func (w *Warmer) Warm(ctx context.Context) error {
	start := time.Now()
	observability.SnapshotWarmingTotal.Inc()
	payload, err := w.fetcher.GetRadar(ctx)
	duration := time.Since(start).Seconds()
	observability.SnapshotWarmingDurationSeconds.Observe(duration)
	if err != nil {
		observability.SnapshotWarmingErrorsTotal.Inc()
		if w.logger != nil {
			w.logger.Warn("snapshot warm failed", zap.Error(err), zap.Float64("duration_seconds", duration))
		}
		return err
	}
	if w.logger != nil {
		w.logger.Info("snapshot warmed", zap.Int("points", len(payload.Points)), zap.Float64("duration_seconds", duration))
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval
// until ctx is done. Warm failures are logged and the loop continues; the
// next tick retries from scratch.
func (w *Warmer) WarmPeriodic(ctx context.Context, interval time.Duration) error {
	_ = w.Warm(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = w.Warm(ctx)
		}
	}
}
