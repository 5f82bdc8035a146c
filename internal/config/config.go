// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Identity      IdentityConfig      `yaml:"identity"`
	Backend       BackendConfig       `yaml:"backend"`
	Capability    CapabilityConfig    `yaml:"capability"`
	Sessions      SessionConfig       `yaml:"sessions"`
	Lookup        LookupConfig        `yaml:"lookup"`
	Dashboard     DashboardConfig     `yaml:"dashboard"`
	Kanban        KanbanConfig        `yaml:"kanban"`
	Query         QueryConfig         `yaml:"query"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// IdentityConfig describes how dashboard bearer tokens are verified.
// Exactly one of HMACSecretEnv or PublicKeyFile must be set.
type IdentityConfig struct {
	Issuer        string            `yaml:"issuer"`
	Audience      string            `yaml:"audience"`
	Algorithms    []string          `yaml:"algorithms"`
	HMACSecretEnv string            `yaml:"hmac_secret_env"`
	PublicKeyFile string            `yaml:"public_key_file"`
	Leeway        time.Duration     `yaml:"leeway"`
	ClaimPaths    map[string]string `yaml:"claim_paths"`
}

// BackendConfig describes the maintenance REST API.
type BackendConfig struct {
	BaseURL          string               `yaml:"base_url"`
	Timeout          time.Duration        `yaml:"timeout"`
	SpecFile         string               `yaml:"spec_file"`
	MaxResponseBytes int64                `yaml:"max_response_bytes"`
	CircuitBreaker   CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig describes circuit breaker settings for the API
// client. A zero FailureThreshold disables the breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// CapabilityConfig describes role to capability resolution.
type CapabilityConfig struct {
	StaticPolicyFile string      `yaml:"static_policy_file"`
	Cache            CacheConfig `yaml:"cache"`
}

// CacheConfig describes cache settings.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// SessionConfig bounds the per-session work-order engines kept in memory.
type SessionConfig struct {
	IdleTTL    time.Duration `yaml:"idle_ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// LookupConfig describes the technician and asset list cache.
type LookupConfig struct {
	Store StoreConfig `yaml:"store"`
	Cache CacheConfig `yaml:"cache"`
}

// StoreConfig selects a cache backend.
type StoreConfig struct {
	Driver  string `yaml:"driver"`
	AddrEnv string `yaml:"addr_env"`
	DB      int    `yaml:"db"`
	Prefix  string `yaml:"prefix"`
}

// DashboardConfig describes the KPI subscription.
type DashboardConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// KanbanConfig describes drag gesture recognition.
type KanbanConfig struct {
	DragThreshold float64 `yaml:"drag_threshold"`
}

// QueryConfig describes list filtering defaults.
type QueryConfig struct {
	Timezone string `yaml:"timezone"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"` // json or console
	Tracing   TracingConfig `yaml:"tracing"`
	Metrics   MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0, // dashboard streams stay open
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  25 << 20,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type", "X-Correlation-Id", "X-Timezone"},
				MaxAge:         86400,
			},
		},
		Identity: IdentityConfig{
			Algorithms: []string{"HS256"},
			Leeway:     30 * time.Second,
			ClaimPaths: map[string]string{
				"subject_id": "sub",
				"email":      "email",
				"name":       "name",
				"role":       "role",
			},
		},
		Backend: BackendConfig{
			MaxResponseBytes: 10 << 20,
			CircuitBreaker: CircuitBreakerConfig{
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
		},
		Capability: CapabilityConfig{
			Cache: CacheConfig{
				TTL:        5 * time.Minute,
				MaxEntries: 64,
			},
		},
		Sessions: SessionConfig{
			IdleTTL:    30 * time.Minute,
			MaxEntries: 10000,
		},
		Lookup: LookupConfig{
			Store: StoreConfig{
				Driver: "memory",
				Prefix: "workdesk:lookup:",
			},
			Cache: CacheConfig{
				TTL:        5 * time.Minute,
				MaxEntries: 1000,
			},
		},
		Dashboard: DashboardConfig{
			PollInterval: 7 * time.Second,
		},
		Kanban: KanbanConfig{
			DragThreshold: 8,
		},
		Query: QueryConfig{
			Timezone: "UTC",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend.base_url is required")
	} else if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		errs = append(errs, "backend.base_url must be an http(s) URL")
	}
	if c.Backend.Timeout < 0 {
		errs = append(errs, "backend.timeout must not be negative")
	}
	switch {
	case c.Identity.HMACSecretEnv == "" && c.Identity.PublicKeyFile == "":
		errs = append(errs, "identity.hmac_secret_env or identity.public_key_file is required")
	case c.Identity.HMACSecretEnv != "" && c.Identity.PublicKeyFile != "":
		errs = append(errs, "identity.hmac_secret_env and identity.public_key_file are mutually exclusive")
	}
	if len(c.Identity.Algorithms) == 0 {
		errs = append(errs, "identity.algorithms must not be empty")
	}
	if c.Dashboard.PollInterval <= 0 {
		errs = append(errs, "dashboard.poll_interval must be positive")
	}
	if c.Kanban.DragThreshold < 0 {
		errs = append(errs, "kanban.drag_threshold must not be negative")
	}
	switch c.Lookup.Store.Driver {
	case "memory":
	case "redis":
		if c.Lookup.Store.AddrEnv == "" {
			errs = append(errs, "lookup.store.addr_env is required for the redis driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("lookup.store.driver %q must be memory or redis", c.Lookup.Store.Driver))
	}
	if _, err := time.LoadLocation(c.Query.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("query.timezone %q is not a known zone", c.Query.Timezone))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads WORKDESK_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WORKDESK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("WORKDESK_BACKEND_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("WORKDESK_IDENTITY_ISSUER"); v != "" {
		cfg.Identity.Issuer = v
	}
	if v := os.Getenv("WORKDESK_IDENTITY_AUDIENCE"); v != "" {
		cfg.Identity.Audience = v
	}
	if v := os.Getenv("WORKDESK_LOOKUP_STORE_DRIVER"); v != "" {
		cfg.Lookup.Store.Driver = v
	}
	if v := os.Getenv("WORKDESK_DASHBOARD_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Dashboard.PollInterval = d
		}
	}
	if v := os.Getenv("WORKDESK_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("WORKDESK_OBSERVABILITY_LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
