package http

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/radarweather/radar-service/internal/cache"
	"github.com/radarweather/radar-service/internal/grid"
	"github.com/radarweather/radar-service/internal/health"
	"github.com/radarweather/radar-service/internal/service"
	"github.com/radarweather/radar-service/internal/transform"
)

type fixedFetcher struct{}

func (fixedFetcher) Fetch(ctx context.Context, url, dest string) error {
	return os.WriteFile(dest, []byte("compressed"), 0o644)
}

type fixedExtractor struct{}

func (fixedExtractor) Extract(src, dst string) error {
	return os.WriteFile(dst, []byte("grid"), 0o644)
}

type fixedDecoder struct {
	set *grid.Set
}

func (d fixedDecoder) Decode(ctx context.Context, path string) (*grid.Set, error) {
	return d.set, nil
}

// newTestRouter wires the full middleware stack and routes around a pipeline
// whose decoder returns the given grid.
func newTestRouter(t *testing.T, set *grid.Set, stride int) *mux.Router {
	t.Helper()
	dir := t.TempDir()
	paths := service.Paths{
		Raw:     filepath.Join(dir, "reflectivity.grib2.gz"),
		Grid:    filepath.Join(dir, "reflectivity.grib2"),
		Payload: filepath.Join(dir, "reflectivity.json"),
	}
	svc := service.NewRadarService(
		fixedFetcher{},
		fixedExtractor{},
		fixedDecoder{set: set},
		transform.New(transform.Config{Stride: stride}),
		cache.NewGate(),
		cache.NewPayloadStore(paths.Payload),
		paths,
		"https://example.com/radar.grib2.gz",
		time.Hour,
	)

	logger := zap.NewNop()
	handler := NewHandler(svc, &HealthConfig{StartTime: time.Now()}, logger)
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/", handler.GetRoot).Methods("GET")
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.HandleFunc("/radar", handler.GetRadar).Methods("GET")
	return router
}

// TestIntegration_RadarEndToEnd drives GET /radar through the router against
// a 2x2 grid spanning the antimeridian convention: the sentinel cell is
// filtered, longitudes are normalized, and the NaN cell survives as zero.
func TestIntegration_RadarEndToEnd(t *testing.T) {
	t.Cleanup(health.Reset)
	health.Reset()

	ts := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	set := &grid.Set{
		Vars: []grid.Variable{
			{
				Name:  "DZ_LOWALT",
				Attrs: grid.Attributes{"units": "dBZ"},
				Lats:  []float64{10, 11},
				Lons:  []float64{190, 200},
				Values: [][]float64{
					{-999, -10},
					{5, math.NaN()},
				},
			},
		},
		Time: &ts,
	}
	router := newTestRouter(t, set, 1)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/radar", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("response missing correlation id")
	}

	var payload struct {
		Timestamp string `json:"timestamp"`
		Metadata  struct {
			Units    string `json:"units"`
			LongName string `json:"long_name"`
			Source   string `json:"source"`
		} `json:"metadata"`
		Points []struct {
			Lat   float64 `json:"lat"`
			Lon   float64 `json:"lon"`
			Value float64 `json:"value"`
		} `json:"points"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse payload: %v", err)
	}

	want := []struct{ lat, lon, value float64 }{
		{10, -160, -10},
		{11, -170, 5},
		{11, -160, 0},
	}
	if len(payload.Points) != len(want) {
		t.Fatalf("got %d points, want %d: %+v", len(payload.Points), len(want), payload.Points)
	}
	for i, w := range want {
		p := payload.Points[i]
		if p.Lat != w.lat || p.Lon != w.lon || p.Value != w.value {
			t.Errorf("point[%d] = %+v, want {%v %v %v}", i, p, w.lat, w.lon, w.value)
		}
	}
	if payload.Timestamp != "2026-08-23T12:00:00Z" {
		t.Errorf("timestamp = %q", payload.Timestamp)
	}
	if payload.Metadata.Units != "dBZ" {
		t.Errorf("units = %q, want dBZ", payload.Metadata.Units)
	}
	if payload.Metadata.LongName != "Reflectivity at Lowest Altitude" {
		t.Errorf("long_name = %q", payload.Metadata.LongName)
	}
	if payload.Metadata.Source != "https://example.com/radar.grib2.gz" {
		t.Errorf("source = %q", payload.Metadata.Source)
	}
}

// TestIntegration_RootAndHealth verifies the liveness endpoints through the
// router.
func TestIntegration_RootAndHealth(t *testing.T) {
	t.Cleanup(health.Reset)
	health.Reset()

	set := &grid.Set{Vars: []grid.Variable{{
		Name:   "DZ",
		Lats:   []float64{40},
		Lons:   []float64{250},
		Values: [][]float64{{10}},
	}}}
	router := newTestRouter(t, set, 1)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse health body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("health status = %v, want healthy", body["status"])
	}
}

// TestIntegration_MethodNotAllowed verifies non-GET verbs are rejected by the
// router rather than reaching the pipeline.
func TestIntegration_MethodNotAllowed(t *testing.T) {
	t.Cleanup(health.Reset)
	health.Reset()

	set := &grid.Set{Vars: []grid.Variable{{
		Name:   "DZ",
		Lats:   []float64{40},
		Lons:   []float64{250},
		Values: [][]float64{{10}},
	}}}
	router := newTestRouter(t, set, 1)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/radar", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /radar status = %d, want 405", rec.Code)
	}
}
