// Package config holds the UV runtime configuration: file, then
// environment, then command-line flags, each layer overriding the last.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ultraviolet/uv/internal/circuitbreaker"
)

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `json:"enabled"`      // Default: false
	Exporter    string  `json:"exporter"`     // otlp-http, stdout
	Endpoint    string  `json:"endpoint"`     // localhost:4318
	ServiceName string  `json:"service_name"` // uv
	SampleRate  float64 `json:"sample_rate"`  // 1.0
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled          bool      `json:"enabled"`           // Default: true
	Namespace        string    `json:"namespace"`         // uv
	HistogramBuckets []float64 `json:"histogram_buckets"` // Pulse duration buckets in ms
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level          string `json:"level"`            // debug, info, warn, error
	Format         string `json:"format"`           // text, json
	IncludeTraceID bool   `json:"include_trace_id"` // Correlate with traces
}

// RegistryConfig holds Prism Registry settings.
type RegistryConfig struct {
	MaxLoadedHandles int           `json:"max_loaded_handles"` // 0 means unbounded
	ReadyTimeout     time.Duration `json:"ready_timeout"`      // How long Load waits for a spawned prism's socket
	Breaker          BreakerConfig `json:"breaker"`
}

// BreakerConfig controls the per-prism load circuit breaker.
type BreakerConfig struct {
	ErrorPct       float64       `json:"error_pct"`       // Error percentage threshold to trip (0-100)
	WindowDuration time.Duration `json:"window_duration"` // Sliding window for error rate calculation
	OpenDuration   time.Duration `json:"open_duration"`   // How long the breaker stays open before half-open
	HalfOpenProbes int           `json:"half_open_probes"`
}

func (b BreakerConfig) toCircuitBreaker() circuitbreaker.Config {
	return circuitbreaker.Config{
		ErrorPct:       b.ErrorPct,
		WindowDuration: b.WindowDuration,
		OpenDuration:   b.OpenDuration,
		HalfOpenProbes: b.HalfOpenProbes,
	}
}

// WebSocketConfig holds a WebSocket listen address. `uv server` does not
// read it; it listens on DaemonConfig.Address.
type WebSocketConfig struct {
	ListenAddr string `json:"listen_addr"` // :8787
}

// LambdaConfig holds the Lambda Transport Adapter's settings.
type LambdaConfig struct {
	// ManagementEndpointOverride points apigatewaymanagementapi at a local
	// emulator (e.g. a WebSocket API Gateway simulator) instead of AWS.
	ManagementEndpointOverride string `json:"management_endpoint_override"`
	Region                     string `json:"region"`
}

// TransportConfig holds settings for all Transport Adapters.
type TransportConfig struct {
	WebSocket WebSocketConfig `json:"websocket"`
	Lambda    LambdaConfig    `json:"lambda"`
}

// DaemonConfig holds daemon-specific settings for `uv server`.
type DaemonConfig struct {
	Address   string `json:"address"`    // HOST:PORT the `uv server` HTTP listener (/beam, /metrics) binds
	NoBrowser bool   `json:"no_browser"` // Skip opening a browser on start
	LogLevel  string `json:"log_level"`
}

// Config is the central configuration struct embedding all component configs.
type Config struct {
	// InstallDir is where discovered spectrum manifests and prism binaries
	// live. Overridable by UV_INSTALL_DIR.
	InstallDir string `json:"install_dir"`

	// DefaultDeadlineMs is used when a wavefront carries no deadline_ms.
	DefaultDeadlineMs int `json:"default_deadline_ms"`
	// CancelGraceMs is loaded from file and env and returned by
	// CancelGrace, but is not passed to the Pulse Engine: after a cancel or
	// deadline expiry the plugin client waits its fixed cancelDrainGrace
	// (2s) for the prism to stop before the engine reports its own trap.
	CancelGraceMs int `json:"cancel_grace_ms"`
	// EmitQueueCapacity bounds the per-correlation photon queue.
	EmitQueueCapacity int `json:"emit_queue_capacity"`
	// DrainDeadlineS bounds how long graceful shutdown waits for in-flight
	// pulses before forcing a stop.
	DrainDeadlineS int `json:"drain_deadline_s"`

	Registry  RegistryConfig  `json:"registry"`
	Transport TransportConfig `json:"transport"`
	Daemon    DaemonConfig    `json:"daemon"`
	Tracing   TracingConfig   `json:"tracing"`
	Metrics   MetricsConfig   `json:"metrics"`
	Logging   LoggingConfig   `json:"logging"`
}

// DefaultDeadline returns DefaultDeadlineMs as a time.Duration.
func (c *Config) DefaultDeadline() time.Duration {
	return time.Duration(c.DefaultDeadlineMs) * time.Millisecond
}

// CancelGrace returns CancelGraceMs as a time.Duration.
func (c *Config) CancelGrace() time.Duration {
	return time.Duration(c.CancelGraceMs) * time.Millisecond
}

// DrainDeadline returns DrainDeadlineS as a time.Duration.
func (c *Config) DrainDeadline() time.Duration {
	return time.Duration(c.DrainDeadlineS) * time.Second
}

// Breaker returns the registry breaker settings converted to
// circuitbreaker.Config.
func (c *Config) Breaker() circuitbreaker.Config {
	return c.Registry.Breaker.toCircuitBreaker()
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		InstallDir:        "/etc/uv/prisms",
		DefaultDeadlineMs: 60000,
		CancelGraceMs:     100,
		EmitQueueCapacity: 64,
		DrainDeadlineS:    5,
		Registry: RegistryConfig{
			MaxLoadedHandles: 64,
			ReadyTimeout:     5 * time.Second,
			Breaker: BreakerConfig{
				ErrorPct:       50,
				WindowDuration: 30 * time.Second,
				OpenDuration:   10 * time.Second,
				HalfOpenProbes: 1,
			},
		},
		Transport: TransportConfig{
			WebSocket: WebSocketConfig{
				ListenAddr: ":8787",
			},
			Lambda: LambdaConfig{
				Region: "us-east-1",
			},
		},
		Daemon: DaemonConfig{
			Address:  "localhost:8080",
			LogLevel: "info",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "otlp-http",
			Endpoint:    "localhost:4318",
			ServiceName: "uv",
			SampleRate:  1.0,
		},
		Metrics: MetricsConfig{
			Enabled:          true,
			Namespace:        "uv",
			HistogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			IncludeTraceID: true,
		},
	}
}

// LoadFromFile loads configuration from a JSON file, starting from
// DefaultConfig so unset fields keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to cfg.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("UV_INSTALL_DIR"); v != "" {
		cfg.InstallDir = v
	}
	if v := os.Getenv("UV_DEFAULT_DEADLINE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultDeadlineMs = n
		}
	}
	if v := os.Getenv("UV_CANCEL_GRACE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CancelGraceMs = n
		}
	}
	if v := os.Getenv("UV_EMIT_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EmitQueueCapacity = n
		}
	}
	if v := os.Getenv("UV_DRAIN_DEADLINE_S"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DrainDeadlineS = n
		}
	}
	if v := os.Getenv("UV_MAX_LOADED_HANDLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Registry.MaxLoadedHandles = n
		}
	}
	if v := os.Getenv("UV_REGISTRY_READY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Registry.ReadyTimeout = d
		}
	}

	// Transport overrides
	if v := os.Getenv("UV_WEBSOCKET_LISTEN_ADDR"); v != "" {
		cfg.Transport.WebSocket.ListenAddr = v
	}
	if v := os.Getenv("UV_LAMBDA_MANAGEMENT_ENDPOINT"); v != "" {
		cfg.Transport.Lambda.ManagementEndpointOverride = v
	}
	if v := os.Getenv("UV_LAMBDA_REGION"); v != "" {
		cfg.Transport.Lambda.Region = v
	}

	// Daemon overrides
	if v := os.Getenv("UV_ADDRESS"); v != "" {
		cfg.Daemon.Address = v
	}
	if v := os.Getenv("UV_LOG_LEVEL"); v != "" {
		cfg.Daemon.LogLevel = v
	}

	// Tracing overrides
	if v := os.Getenv("UV_TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("UV_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("UV_TRACING_EXPORTER"); v != "" {
		cfg.Tracing.Exporter = v
	}
	if v := os.Getenv("UV_TRACING_SERVICE_NAME"); v != "" {
		cfg.Tracing.ServiceName = v
	}
	if v := os.Getenv("UV_TRACING_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tracing.SampleRate = f
		}
	}

	// Metrics overrides
	if v := os.Getenv("UV_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("UV_METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}

	// Logging overrides
	if v := os.Getenv("UV_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("UV_LOG_INCLUDE_TRACE_ID"); v != "" {
		cfg.Logging.IncludeTraceID = parseBool(v)
	}

	// Breaker overrides
	if v := os.Getenv("UV_BREAKER_ERROR_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Registry.Breaker.ErrorPct = f
		}
	}
	if v := os.Getenv("UV_BREAKER_OPEN_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Registry.Breaker.OpenDuration = d
		}
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}
