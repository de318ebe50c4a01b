package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radarweather/radar-service/internal/cache"
	"github.com/radarweather/radar-service/internal/circuitbreaker"
	"github.com/radarweather/radar-service/internal/config"
	"github.com/radarweather/radar-service/internal/extract"
	"github.com/radarweather/radar-service/internal/fetch"
	"github.com/radarweather/radar-service/internal/grid"
	"github.com/radarweather/radar-service/internal/health"
	httphandler "github.com/radarweather/radar-service/internal/http"
	"github.com/radarweather/radar-service/internal/observability"
	"github.com/radarweather/radar-service/internal/service"
	"github.com/radarweather/radar-service/internal/transform"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	fetcher := fetch.NewHTTPFetcher(cfg.SourceTimeout, cfg.RetryAttempts, cfg.RetryDelay)
	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        "mrms_source",
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("mrms_source", from.String(), to.String())
				observability.SetCircuitBreakerStateGauge("mrms_source", float64(int(to)))
			},
		})
		fetcher.SetCircuitBreaker(cb)
		observability.SetCircuitBreakerStateGauge("mrms_source", 0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	gate := cache.NewGate()
	store := cache.NewPayloadStore(cfg.PayloadPath())
	if _, ok, err := store.Load(); err != nil {
		logger.Warn("stored payload unreadable, starting cold", zap.Error(err))
	} else if ok {
		logger.Info("restored cached payload", zap.String("path", cfg.PayloadPath()))
	}

	radarService := service.NewRadarService(
		fetcher,
		extract.NewGzipExtractor(),
		grid.NewGRIB2Decoder(),
		transform.New(transform.Config{Stride: cfg.Stride, Threshold: &cfg.Threshold, LongName: cfg.LongName}),
		gate,
		store,
		service.Paths{Raw: cfg.RawPath(), Grid: cfg.GridPath(), Payload: cfg.PayloadPath()},
		cfg.SourceURL,
		cfg.CacheMaxAge,
	)

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:         cfg.OverloadWindow,
		OverloadThresholdPct:   cfg.OverloadThresholdPct,
		RateLimitRPS:           cfg.RateLimitRPS,
		DegradedWindow:         cfg.DegradedWindow,
		DegradedErrorPct:       cfg.DegradedErrorPct,
		IdleWindow:             cfg.IdleWindow,
		IdleThresholdReqPerMin: cfg.IdleThresholdReqPerMin,
		MinimumLifespan:        cfg.MinimumLifespan,
		StartTime:              time.Now(),
		SnapshotFresh: func() bool {
			return !gate.ShouldRefetch(cfg.GridPath(), cfg.CacheMaxAge)
		},
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(radarService, healthConfig, logger)

	if cfg.RefreshEnabled {
		warmer := cache.NewWarmer(radarService, logger)
		go func() {
			if err := warmer.WarmPeriodic(context.Background(), cfg.RefreshInterval); err != nil && err != context.Canceled {
				logger.Error("periodic snapshot warming stopped", zap.Error(err))
			}
		}()
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/", handler.GetRoot).Methods("GET")
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	radarRouter := router.PathPrefix("/radar").Subrouter()
	radarRouter.Use(httphandler.RateLimitMiddleware(limiter))
	radarRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	radarRouter.HandleFunc("", handler.GetRadar).Methods("GET")

	// Map frontends call from arbitrary origins.
	corsHandler := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins([]string{"*"}),
		gorillahandlers.AllowedMethods([]string{"GET", "HEAD", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"*"}),
	)(router)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      corsHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort), zap.String("source", cfg.SourceURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	health.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
