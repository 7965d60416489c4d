// Package config loads gateway configuration from environment variables.
//
// The credential list, tier table, and webhook secret are consumed from the
// environment/secret store; this process defines none of them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/grump-ai/gateway/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Credentials   CredentialsConfig
	Billing       BillingConfig
	Auth          AuthConfig
	Usage         UsageConfig
	Upstream      UpstreamConfig
	TierTableJSON string
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// CredentialsConfig selects and configures the credential source
type CredentialsConfig struct {
	// Source is "env" or "file"
	Source          string
	EnvVar          string
	FilePath        string
	RefreshInterval time.Duration
	// RefreshSchedule is a cron spec for scheduled pool refreshes
	RefreshSchedule string
}

// BillingConfig holds webhook verification settings
type BillingConfig struct {
	WebhookSecret string
	DedupeSize    int
	DedupeTTL     time.Duration
}

// AuthConfig holds API token settings
type AuthConfig struct {
	// TokenEntries are comma-separated "<sha256hash>:<user_id>" pairs
	TokenEntries []string
}

// UsageConfig bounds the in-memory usage log
type UsageConfig struct {
	BufferCapacity int
}

// UpstreamConfig points at the governed AI provider. When BaseURL is empty
// the governed relay route is not mounted; the middleware remains available
// to embedding handlers.
type UpstreamConfig struct {
	BaseURL string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("GATEWAY_HOST", "0.0.0.0"),
			Port:            getEnv("GATEWAY_PORT", "8080"),
			ReadTimeout:     getEnvDuration("GATEWAY_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("GATEWAY_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("GATEWAY_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("GATEWAY_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("GATEWAY_HEALTH_PORT", "9090"),
		},
		Credentials: CredentialsConfig{
			Source:          getEnv("GATEWAY_CREDENTIAL_SOURCE", "env"),
			EnvVar:          getEnv("GATEWAY_CREDENTIAL_ENV_VAR", "GATEWAY_UPSTREAM_KEYS"),
			FilePath:        getEnv("GATEWAY_CREDENTIAL_FILE", ""),
			RefreshInterval: getEnvDuration("GATEWAY_CREDENTIAL_REFRESH_INTERVAL", 5*time.Minute),
			RefreshSchedule: getEnv("GATEWAY_CREDENTIAL_REFRESH_SCHEDULE", "@every 5m"),
		},
		Billing: BillingConfig{
			WebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),
			DedupeSize:    getEnvInt("GATEWAY_WEBHOOK_DEDUPE_SIZE", 4096),
			DedupeTTL:     getEnvDuration("GATEWAY_WEBHOOK_DEDUPE_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			TokenEntries: splitNonEmpty(getEnv("GATEWAY_API_TOKENS", "")),
		},
		Usage: UsageConfig{
			BufferCapacity: getEnvInt("GATEWAY_USAGE_BUFFER_CAPACITY", 10000),
		},
		Upstream: UpstreamConfig{
			BaseURL: getEnv("GATEWAY_UPSTREAM_URL", ""),
		},
		TierTableJSON: getEnv("GATEWAY_TIER_TABLE", ""),
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("GATEWAY_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("GATEWAY_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Credentials.Source {
	case "env":
		if c.Credentials.EnvVar == "" {
			return fmt.Errorf("credential env var name is required for env source")
		}
	case "file":
		if c.Credentials.FilePath == "" {
			return fmt.Errorf("credential file path is required for file source")
		}
	default:
		return fmt.Errorf("unknown credential source %q (want env or file)", c.Credentials.Source)
	}

	if c.Billing.WebhookSecret == "" {
		return fmt.Errorf("webhook secret is required")
	}
	if c.Usage.BufferCapacity <= 0 {
		return fmt.Errorf("usage buffer capacity must be positive")
	}

	return nil
}

// getEnv returns an environment variable or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitNonEmpty(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
