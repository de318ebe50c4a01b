// Package service orchestrates the fetch-cache-transform pipeline behind a
// single cache slot: gate check, streaming fetch, gzip extract, grid decode,
// transform, persist.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radarweather/radar-service/internal/cache"
	"github.com/radarweather/radar-service/internal/extract"
	"github.com/radarweather/radar-service/internal/fetch"
	"github.com/radarweather/radar-service/internal/grid"
	"github.com/radarweather/radar-service/internal/models"
	"github.com/radarweather/radar-service/internal/observability"
	"github.com/radarweather/radar-service/internal/transform"
)

// Paths are the fixed locations of the three single-slot artifacts.
type Paths struct {
	Raw     string // compressed snapshot
	Grid    string // decompressed GRIB2 file
	Payload string // cached JSON payload
}

// RadarService runs the snapshot pipeline on demand. A mutex serializes the
// shared cache slot so concurrent stale observers cannot race into duplicate
// multi-hundred-MB downloads; the coalescer lets them wait for the in-flight
// result instead.
type RadarService struct {
	fetcher     fetch.Fetcher
	extractor   extract.Extractor
	decoder     grid.Decoder
	transformer *transform.Transformer
	gate        *cache.Gate
	store       *cache.PayloadStore

	paths     Paths
	sourceURL string
	maxAge    time.Duration

	coalescer *requestCoalescer

	mu sync.Mutex // guards the check-then-fetch sequence on the slot
}

// NewRadarService creates a RadarService. maxAge is the freshness window of
// the decoded artifact (the upstream polling cadence).
func NewRadarService(
	fetcher fetch.Fetcher,
	extractor extract.Extractor,
	decoder grid.Decoder,
	transformer *transform.Transformer,
	gate *cache.Gate,
	store *cache.PayloadStore,
	paths Paths,
	sourceURL string,
	maxAge time.Duration,
) *RadarService {
	return &RadarService{
		fetcher:     fetcher,
		extractor:   extractor,
		decoder:     decoder,
		transformer: transformer,
		gate:        gate,
		store:       store,
		paths:       paths,
		sourceURL:   sourceURL,
		maxAge:      maxAge,
		coalescer:   newRequestCoalescer(),
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// GetRadar returns the current payload, running the pipeline when the cached
// slot is stale. Concurrent callers observing a stale slot coalesce onto one
// run, keyed on the grid artifact path.
func (s *RadarService) GetRadar(ctx context.Context) (models.RadarPayload, error) {
	start := time.Now()
	payload, shared, err := s.coalescer.GetOrDo(ctx, s.paths.Grid, func() (models.RadarPayload, error) {
		return s.run(ctx)
	})
	if shared {
		observability.PipelineCoalescedTotal.Inc()
		observability.PipelineCoalesceWaitSeconds.Observe(time.Since(start).Seconds())
	}
	return payload, err
}

// run executes one pass of the per-request state machine:
// CacheCheck -> (Fetching -> Extracting)? -> Decoding -> Transforming.
// Any stage failure aborts the rest; no partial payloads escape.
func (s *RadarService) run(ctx context.Context) (models.RadarPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := loggerFromContext(ctx)
	start := time.Now()

	if !s.gate.ShouldRefetch(s.paths.Grid, s.maxAge) {
		if payload, ok := s.store.Get(); ok {
			observability.SnapshotCacheHitsTotal.Inc()
			if logger != nil {
				logger.Debug("cache hit", zap.String("grid", s.paths.Grid))
			}
			return payload, nil
		}
		// Fresh grid on disk but cold memory (restart): decode without refetching.
		if logger != nil {
			logger.Debug("grid fresh, payload cold; decoding existing artifact")
		}
		return s.decodeAndTransform(ctx, start)
	}

	if logger != nil {
		logger.Info("snapshot stale, fetching", zap.String("url", s.sourceURL))
	}
	if err := s.fetcher.Fetch(ctx, s.sourceURL, s.paths.Raw); err != nil {
		observability.PipelineRunsTotal.WithLabelValues("fetch").Inc()
		return models.RadarPayload{}, fmt.Errorf("fetch radar snapshot: %w", err)
	}
	if err := s.extractor.Extract(s.paths.Raw, s.paths.Grid); err != nil {
		observability.PipelineRunsTotal.WithLabelValues("extract").Inc()
		return models.RadarPayload{}, fmt.Errorf("extract radar snapshot: %w", err)
	}
	return s.decodeAndTransform(ctx, start)
}

// decodeAndTransform finishes the pipeline from the decoded artifact and
// publishes the payload to the store. Persisting the JSON side cache is
// best-effort; a disk error there must not fail the request.
func (s *RadarService) decodeAndTransform(ctx context.Context, start time.Time) (models.RadarPayload, error) {
	logger := loggerFromContext(ctx)

	set, err := s.decoder.Decode(ctx, s.paths.Grid)
	if err != nil {
		observability.PipelineRunsTotal.WithLabelValues("decode").Inc()
		return models.RadarPayload{}, fmt.Errorf("decode radar grid: %w", err)
	}

	payload, err := s.transformer.Transform(set, s.sourceURL)
	if err != nil {
		observability.PipelineRunsTotal.WithLabelValues("transform").Inc()
		return models.RadarPayload{}, fmt.Errorf("transform radar grid: %w", err)
	}

	s.store.Set(payload)
	if err := s.store.Persist(payload); err != nil {
		if logger != nil {
			logger.Warn("payload persist failed", zap.Error(err))
		}
	}

	observability.PipelineRunsTotal.WithLabelValues("success").Inc()
	observability.PipelineDuration.Observe(time.Since(start).Seconds())
	observability.PayloadPointsCount.Set(float64(len(payload.Points)))
	if logger != nil {
		logger.Info("payload built",
			zap.Int("points", len(payload.Points)),
			zap.String("timestamp", payload.Timestamp),
			zap.Duration("duration", time.Since(start)))
	}
	return payload, nil
}
