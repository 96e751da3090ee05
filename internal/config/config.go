// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (HELPDESK_ prefix, runtime override)
//  2. Config file (helpdesk.yaml in the working directory or --config path)
//  3. Default values
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidListenAddr indicates the server listen address is invalid.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrMissingUpstreamEndpoint indicates the upstream chat endpoint is not set.
	ErrMissingUpstreamEndpoint = errors.New("missing upstream endpoint")

	// ErrMissingUpstreamKey indicates the upstream API key is not set.
	ErrMissingUpstreamKey = errors.New("missing upstream API key")

	// ErrMissingUpstreamModel indicates the upstream model name is not set.
	ErrMissingUpstreamModel = errors.New("missing upstream model")

	// ErrInvalidStoreBackend indicates the conversation store backend is unknown.
	ErrInvalidStoreBackend = errors.New("invalid store backend")

	// ErrMissingDatabaseURL indicates a Postgres-backed component has no connection URL.
	ErrMissingDatabaseURL = errors.New("missing database URL")

	// ErrMissingRedisAddr indicates the Redis backend has no address.
	ErrMissingRedisAddr = errors.New("missing redis address")

	// ErrInvalidRateLimit indicates the rate limit settings are out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrInvalidMatchCount indicates the retrieval match count is out of range.
	ErrInvalidMatchCount = errors.New("invalid match count")
)

// Conversation store backend identifiers used in Config.StoreBackend.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in LogValue().
type Config struct {
	// HTTP server
	ListenAddr  string   `mapstructure:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy"`
	RateLimit   float64  `mapstructure:"rate_limit"`
	RateBurst   int      `mapstructure:"rate_burst"`

	// Upstream chat completion service
	UpstreamEndpoint string `mapstructure:"upstream_endpoint"`
	UpstreamAPIKey   string `mapstructure:"upstream_api_key"` // SENSITIVE: masked in LogValue
	UpstreamModel    string `mapstructure:"upstream_model"`

	// Conversation store: "memory", "postgres" or "redis"
	StoreBackend string `mapstructure:"store_backend"`
	DatabaseURL  string `mapstructure:"database_url"` // SENSITIVE: masked in LogValue
	RedisAddr    string `mapstructure:"redis_addr"`

	// Knowledge retrieval
	MatchCount int `mapstructure:"match_count"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load loads configuration. path optionally names an explicit config file;
// when empty, helpdesk.yaml is searched in the working directory.
// Priority: Environment variables > Configuration file > Default values
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("helpdesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one is not.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_limit", 1.0)
	v.SetDefault("rate_burst", 30)

	v.SetDefault("upstream_model", "gpt-4o-mini")

	v.SetDefault("store_backend", StoreMemory)

	v.SetDefault("match_count", 3)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds every config key to its HELPDESK_-prefixed
// environment variable. Explicit BindEnv per key: AutomaticEnv alone does
// not surface env-only values through Unmarshal for keys absent from the
// file and defaults, which is exactly how the secrets arrive in
// deployment.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded key names cannot fail to bind; a failure is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("listen_addr", "HELPDESK_LISTEN_ADDR")
	mustBind("cors_origins", "HELPDESK_CORS_ORIGINS")
	mustBind("trust_proxy", "HELPDESK_TRUST_PROXY")
	mustBind("rate_limit", "HELPDESK_RATE_LIMIT")
	mustBind("rate_burst", "HELPDESK_RATE_BURST")

	mustBind("upstream_endpoint", "HELPDESK_UPSTREAM_ENDPOINT")
	mustBind("upstream_api_key", "HELPDESK_UPSTREAM_API_KEY")
	mustBind("upstream_model", "HELPDESK_UPSTREAM_MODEL")

	mustBind("store_backend", "HELPDESK_STORE_BACKEND")
	mustBind("database_url", "HELPDESK_DATABASE_URL")
	mustBind("redis_addr", "HELPDESK_REDIS_ADDR")

	mustBind("match_count", "HELPDESK_MATCH_COUNT")

	mustBind("log_level", "HELPDESK_LOG_LEVEL")
	mustBind("log_json", "HELPDESK_LOG_JSON")
}

// Validate checks the configuration for obvious misconfiguration so the
// process fails at startup rather than on the first request.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("%w: listen_addr is empty", ErrInvalidListenAddr)
	}

	if strings.TrimSpace(c.UpstreamEndpoint) == "" {
		return fmt.Errorf("%w: set upstream_endpoint or HELPDESK_UPSTREAM_ENDPOINT", ErrMissingUpstreamEndpoint)
	}
	if strings.TrimSpace(c.UpstreamAPIKey) == "" {
		return fmt.Errorf("%w: set upstream_api_key or HELPDESK_UPSTREAM_API_KEY", ErrMissingUpstreamKey)
	}
	if strings.TrimSpace(c.UpstreamModel) == "" {
		return fmt.Errorf("%w: set upstream_model or HELPDESK_UPSTREAM_MODEL", ErrMissingUpstreamModel)
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("%w: the postgres backend needs database_url", ErrMissingDatabaseURL)
		}
	case StoreRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("%w: the redis backend needs redis_addr", ErrMissingRedisAddr)
		}
	default:
		return fmt.Errorf("%w: %q (want %s, %s or %s)",
			ErrInvalidStoreBackend, c.StoreBackend, StoreMemory, StorePostgres, StoreRedis)
	}

	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("%w: rate_limit and rate_burst must be positive", ErrInvalidRateLimit)
	}

	if c.MatchCount <= 0 || c.MatchCount > 20 {
		return fmt.Errorf("%w: match_count must be between 1 and 20", ErrInvalidMatchCount)
	}

	return nil
}

// Level parses the configured log level, defaulting to info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogValue implements slog.LogValuer so the loaded configuration can be
// logged at startup without leaking secrets.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("listen_addr", c.ListenAddr),
		slog.Any("cors_origins", c.CORSOrigins),
		slog.Bool("trust_proxy", c.TrustProxy),
		slog.Float64("rate_limit", c.RateLimit),
		slog.Int("rate_burst", c.RateBurst),
		slog.String("upstream_endpoint", c.UpstreamEndpoint),
		slog.String("upstream_api_key", maskSecret(c.UpstreamAPIKey)),
		slog.String("upstream_model", c.UpstreamModel),
		slog.String("store_backend", c.StoreBackend),
		slog.String("database_url", maskSecret(c.DatabaseURL)),
		slog.String("redis_addr", c.RedisAddr),
		slog.Int("match_count", c.MatchCount),
		slog.String("log_level", c.LogLevel),
	)
}

// maskSecret hides a secret's value while signalling whether it is set.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
