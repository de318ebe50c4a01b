package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSourceURL is the MRMS Reflectivity at Lowest Altitude latest-snapshot
// endpoint. Overridable via config or RADAR_SOURCE_URL for test doubles.
const DefaultSourceURL = "https://mrms.ncep.noaa.gov/2D/ReflectivityAtLowestAltitude/MRMS_ReflectivityAtLowestAltitude.latest.grib2.gz"

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	SourceURL     string
	SourceTimeout time.Duration

	RequestTimeout time.Duration

	ArtifactsDir string
	RawFile      string // compressed snapshot as fetched
	GridFile     string // decompressed GRIB2 artifact
	PayloadFile  string // cached JSON payload

	CacheMaxAge time.Duration

	Stride    int
	Threshold float64
	LongName  string

	RetryAttempts  int
	RetryDelay     time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	RefreshEnabled  bool
	RefreshInterval time.Duration

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	IdleThresholdReqPerMin int
	IdleWindow             time.Duration
	MinimumLifespan        time.Duration
	DegradedWindow         time.Duration
	DegradedErrorPct       int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Source struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"source"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Artifacts struct {
		Dir         string `yaml:"dir"`
		RawFile     string `yaml:"raw_file"`
		GridFile    string `yaml:"grid_file"`
		PayloadFile string `yaml:"payload_file"`
	} `yaml:"artifacts"`

	Cache struct {
		MaxAge string `yaml:"max_age"`
	} `yaml:"cache"`

	Transform struct {
		Stride    int      `yaml:"stride"`
		Threshold *float64 `yaml:"threshold"`
		LongName  string   `yaml:"long_name"`
	} `yaml:"transform"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryDelay       string `yaml:"retry_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	CircuitBreaker struct {
		Enabled          bool   `yaml:"enabled"`
		FailureThreshold int    `yaml:"failure_threshold"`
		SuccessThreshold int    `yaml:"success_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Refresh struct {
		Enabled  bool   `yaml:"enabled"`
		Interval string `yaml:"interval"`
	} `yaml:"refresh"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow         string `yaml:"overload_window"`
		OverloadThresholdPct   int    `yaml:"overload_threshold_pct"`
		IdleThresholdReqPerMin int    `yaml:"idle_threshold_req_per_min"`
		IdleWindow             string `yaml:"idle_window"`
		MinimumLifespan        string `yaml:"minimum_lifespan"`
		DegradedWindow         string `yaml:"degraded_window"`
		DegradedErrorPct       int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev).
// RADAR_SOURCE_URL and RADAR_ARTIFACTS_DIR env vars override the file.
// Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.SourceURL = strings.TrimSpace(os.Getenv("RADAR_SOURCE_URL"))
	if cfg.SourceURL == "" {
		cfg.SourceURL = strings.TrimSpace(fc.Source.URL)
	}
	if cfg.SourceURL == "" {
		cfg.SourceURL = DefaultSourceURL
	}
	cfg.SourceTimeout = parseDuration(fc.Source.Timeout, 90*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Minute)

	cfg.ArtifactsDir = strings.TrimSpace(os.Getenv("RADAR_ARTIFACTS_DIR"))
	if cfg.ArtifactsDir == "" {
		cfg.ArtifactsDir = strings.TrimSpace(fc.Artifacts.Dir)
	}
	if cfg.ArtifactsDir == "" {
		cfg.ArtifactsDir = "data"
	}
	cfg.RawFile = defaultString(fc.Artifacts.RawFile, "reflectivity.grib2.gz")
	cfg.GridFile = defaultString(fc.Artifacts.GridFile, "reflectivity.grib2")
	cfg.PayloadFile = defaultString(fc.Artifacts.PayloadFile, "reflectivity.json")

	cfg.CacheMaxAge = parseDuration(fc.Cache.MaxAge, 15*time.Minute)

	cfg.Stride = fc.Transform.Stride
	if cfg.Stride <= 0 {
		cfg.Stride = 20
	}
	cfg.Threshold = -50
	if fc.Transform.Threshold != nil {
		cfg.Threshold = *fc.Transform.Threshold
	}
	cfg.LongName = defaultString(fc.Transform.LongName, "Reflectivity at Lowest Altitude")

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryDelay = parseDuration(fc.Reliability.RetryDelay, 3*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS < 0 {
		cfg.RateLimitRPS = 0
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 2 * cfg.RateLimitRPS
	}

	cfg.CircuitBreakerEnabled = fc.CircuitBreaker.Enabled
	cfg.CircuitBreakerFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, 2*time.Minute)

	cfg.RefreshEnabled = fc.Refresh.Enabled
	cfg.RefreshInterval = parseDuration(fc.Refresh.Interval, 15*time.Minute)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 30*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.IdleThresholdReqPerMin = fc.Lifecycle.IdleThresholdReqPerMin
	if cfg.IdleThresholdReqPerMin <= 0 {
		cfg.IdleThresholdReqPerMin = 5
	}
	cfg.IdleWindow = parseDuration(fc.Lifecycle.IdleWindow, 5*time.Minute)
	cfg.MinimumLifespan = parseDuration(fc.Lifecycle.MinimumLifespan, 5*time.Minute)
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RawPath returns the full path of the compressed snapshot artifact.
func (c *Config) RawPath() string { return filepath.Join(c.ArtifactsDir, c.RawFile) }

// GridPath returns the full path of the decompressed GRIB2 artifact.
func (c *Config) GridPath() string { return filepath.Join(c.ArtifactsDir, c.GridFile) }

// PayloadPath returns the full path of the cached JSON payload.
func (c *Config) PayloadPath() string { return filepath.Join(c.ArtifactsDir, c.PayloadFile) }

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// defaultString returns s trimmed, or defaultVal when empty.
func defaultString(s, defaultVal string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	return s
}

// validate performs post-load validation of configuration values.
// The source URL must be absolute http(s). The per-attempt fetch timeout must
// stay in the 60-120s band the upstream file size demands, and the request
// timeout must cover a worst-case fetch (all attempts plus delays).
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.SourceURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("source.url must be an absolute http(s) URL, got %q", cfg.SourceURL)
	}
	if cfg.SourceTimeout < 60*time.Second || cfg.SourceTimeout > 120*time.Second {
		return fmt.Errorf("source.timeout must be between 60s and 120s, got %s", cfg.SourceTimeout)
	}
	worstCaseFetch := time.Duration(cfg.RetryAttempts)*cfg.SourceTimeout + time.Duration(cfg.RetryAttempts-1)*cfg.RetryDelay
	if cfg.RequestTimeout <= worstCaseFetch {
		cfg.RequestTimeout = worstCaseFetch + 30*time.Second
	}
	return nil
}
