// Package config loads and validates client config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session storage backends accepted by SESSION_BACKEND.
const (
	SessionBackendSQLite = "sqlite"
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

// Routing engines accepted by ROUTING_ENGINE.
const (
	RoutingEngineNative = "native"
	RoutingEngineOPA    = "opa"
)

// Config holds client configuration loaded from the environment.
type Config struct {
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// APIBaseURL is the REST backend base URL (e.g. https://api.example.com). Required.
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	// HTTPTimeout is the per-request timeout for backend and provider calls (e.g. "15s").
	HTTPTimeout string `mapstructure:"HTTP_TIMEOUT"`

	// AuthProviderURL is the identity provider base URL (GoTrue-compatible auth server).
	AuthProviderURL string `mapstructure:"AUTH_PROVIDER_URL"`
	// AuthProviderAPIKey is the public (anon) API key sent to the provider as the apikey header.
	AuthProviderAPIKey string `mapstructure:"AUTH_PROVIDER_API_KEY"`
	// OAuthProvider is the external provider name passed to the authorize endpoint (default google).
	OAuthProvider string `mapstructure:"OAUTH_PROVIDER"`
	// OAuthRedirectAddr is the loopback address the dev client listens on for OAuth redirects.
	OAuthRedirectAddr string `mapstructure:"OAUTH_REDIRECT_ADDR"`

	// SessionBackend selects persisted-session storage: sqlite, redis, or memory.
	SessionBackend string `mapstructure:"SESSION_BACKEND"`
	// SessionDBPath is the SQLite file used when SessionBackend is sqlite.
	SessionDBPath string `mapstructure:"SESSION_DB_PATH"`
	// RedisURL is the Redis URL used when SessionBackend is redis (e.g. redis://localhost:6379/0).
	RedisURL string `mapstructure:"REDIS_URL"`
	// SessionEncryptionKey, when set, seals the persisted session blob. Empty stores plain JSON.
	SessionEncryptionKey string `mapstructure:"SESSION_ENCRYPTION_KEY"`

	// RoutingEngine selects the active-work rule evaluator: native or opa.
	RoutingEngine string `mapstructure:"ROUTING_ENGINE"`

	// SplashAntiFlicker is the fixed delay after rehydration before hiding the native splash.
	SplashAntiFlicker string `mapstructure:"SPLASH_ANTI_FLICKER"`
	// SplashSafetyTimeout bounds the in-app splash; the sequencer proceeds when it fires.
	SplashSafetyTimeout string `mapstructure:"SPLASH_SAFETY_TIMEOUT"`
	// SplashProgressInterval is the cadence of the in-app splash progress steps.
	SplashProgressInterval string `mapstructure:"SPLASH_PROGRESS_INTERVAL"`
	// SplashProgressStep is the percentage added per progress tick (1-100).
	SplashProgressStep int `mapstructure:"SPLASH_PROGRESS_STEP"`
	// RehydrationTimeout bounds the wait for the persisted session. "0" waits forever.
	RehydrationTimeout string `mapstructure:"REHYDRATION_TIMEOUT"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("API_BASE_URL", "")
	v.SetDefault("HTTP_TIMEOUT", "15s")
	v.SetDefault("AUTH_PROVIDER_URL", "")
	v.SetDefault("AUTH_PROVIDER_API_KEY", "")
	v.SetDefault("OAUTH_PROVIDER", "google")
	v.SetDefault("OAUTH_REDIRECT_ADDR", "127.0.0.1:8765")
	v.SetDefault("SESSION_BACKEND", SessionBackendSQLite)
	v.SetDefault("SESSION_DB_PATH", "./data/session.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SESSION_ENCRYPTION_KEY", "")
	v.SetDefault("ROUTING_ENGINE", RoutingEngineNative)
	v.SetDefault("SPLASH_ANTI_FLICKER", "200ms")
	v.SetDefault("SPLASH_SAFETY_TIMEOUT", "10s")
	v.SetDefault("SPLASH_PROGRESS_INTERVAL", "30ms")
	v.SetDefault("SPLASH_PROGRESS_STEP", 1)
	v.SetDefault("REHYDRATION_TIMEOUT", "0")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "gig-marketplace-client")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, errors.New("config: API_BASE_URL must be set")
	}

	switch cfg.SessionBackend {
	case SessionBackendSQLite:
		if cfg.SessionDBPath == "" {
			return nil, errors.New("config: SESSION_DB_PATH must be set when SESSION_BACKEND=sqlite")
		}
	case SessionBackendRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("config: REDIS_URL must be set when SESSION_BACKEND=redis")
		}
	case SessionBackendMemory:
	default:
		return nil, errors.New("config: SESSION_BACKEND must be one of sqlite, redis, memory")
	}

	if cfg.RoutingEngine != RoutingEngineNative && cfg.RoutingEngine != RoutingEngineOPA {
		return nil, errors.New("config: ROUTING_ENGINE must be native or opa")
	}

	if cfg.SplashProgressStep == 0 {
		cfg.SplashProgressStep = 1
	}
	if cfg.SplashProgressStep < 1 || cfg.SplashProgressStep > 100 {
		return nil, errors.New("config: SPLASH_PROGRESS_STEP must be between 1 and 100")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// HTTPTimeoutDuration parses HTTPTimeout. Returns 15s if unset or invalid.
func (c *Config) HTTPTimeoutDuration() time.Duration {
	return parsePositive(c.HTTPTimeout, 15*time.Second)
}

// AntiFlickerDelay parses SplashAntiFlicker. Returns 200ms if unset or invalid.
func (c *Config) AntiFlickerDelay() time.Duration {
	return parsePositive(c.SplashAntiFlicker, 200*time.Millisecond)
}

// SafetyTimeout parses SplashSafetyTimeout. Returns 10s if unset or invalid.
func (c *Config) SafetyTimeout() time.Duration {
	return parsePositive(c.SplashSafetyTimeout, 10*time.Second)
}

// ProgressInterval parses SplashProgressInterval. Returns 30ms if unset or invalid.
func (c *Config) ProgressInterval() time.Duration {
	return parsePositive(c.SplashProgressInterval, 30*time.Millisecond)
}

// RehydrationWait parses RehydrationTimeout. Zero (the default) means wait without a bound.
func (c *Config) RehydrationWait() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.RehydrationTimeout))
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func parsePositive(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
