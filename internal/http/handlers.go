package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radarweather/radar-service/internal/health"
	"github.com/radarweather/radar-service/internal/models"
)

// RootMessage is the static liveness message served on GET /.
const RootMessage = "Radar Weather API is running. Visit /radar for data."

// RadarProvider is the pipeline surface the handlers need.
type RadarProvider interface {
	GetRadar(ctx context.Context) (models.RadarPayload, error)
}

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	RateLimitRPS           int
	DegradedWindow         time.Duration
	DegradedErrorPct       int
	IdleWindow             time.Duration
	IdleThresholdReqPerMin int
	MinimumLifespan        time.Duration
	StartTime              time.Time
	// SnapshotFresh, when set, reports whether the cached grid artifact is
	// inside its freshness window. Feeds the health checks map.
	SnapshotFresh func() bool
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	radar            RadarProvider
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(radar RadarProvider, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		radar:        radar,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetRoot handles GET /. No pipeline invocation, just liveness.
func (h *Handler) GetRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": RootMessage})
}

// GetRadar handles GET /radar: runs (or joins) the pipeline and returns the
// payload, or a flat error body when any stage failed.
func (h *Handler) GetRadar(w http.ResponseWriter, r *http.Request) {
	health.RecordRequest()
	payload, err := h.radar.GetRadar(r.Context())
	if err != nil {
		health.RecordError()
		if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
			logger.Error("radar pipeline failed", zap.Error(err))
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, payload)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.status == "degraded" {
		checks["pipeline"] = "unhealthy"
	} else {
		checks["pipeline"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.SnapshotFresh != nil {
		if h.healthConfig.SnapshotFresh() {
			checks["snapshot"] = "fresh"
		} else {
			checks["snapshot"] = "stale"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "radar-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates lifecycle conditions in priority order:
// shutting-down > overloaded > idle > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if health.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.healthConfig.RateLimitRPS > 0 {
		threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
		if float64(health.OutcomeCount(h.healthConfig.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if h.healthConfig.IdleWindow > 0 && h.healthConfig.MinimumLifespan > 0 && time.Since(h.healthConfig.StartTime) >= h.healthConfig.MinimumLifespan {
		if health.RequestCount(h.healthConfig.IdleWindow) < h.healthConfig.IdleThresholdReqPerMin {
			return healthResult{"idle", http.StatusOK, "low_traffic"}
		}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errors, total := health.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errors) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
