package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/pfcatalog/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Upstream admin API configuration
	Upstream UpstreamConfig

	// Snapshot store configuration
	Snapshot SnapshotConfig

	// Observability configuration
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

	// Origins allowed to call the API from a browser. Empty disables CORS.
	CORSOrigins []string

	// Per-client limit on requests that reach the admin API. Zero disables.
	RateLimitPerMinute int
	RateLimitBurst     int
}

// UpstreamConfig holds settings for talking to the admin API
type UpstreamConfig struct {
	// EnvironmentsFile is the YAML file listing the upstream environments
	EnvironmentsFile string

	// Timeout for a single upstream request; zero keeps transport defaults
	Timeout time.Duration
}

// SnapshotConfig holds the optional shared reference snapshot settings
type SnapshotConfig struct {
	RedisURL      string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// Enabled reports whether a snapshot store should be created
func (s SnapshotConfig) Enabled() bool {
	return s.RedisURL != ""
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Upstream:      loadUpstreamConfig(),
		Snapshot:      loadSnapshotConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PFCATALOG_HOST", "0.0.0.0"),
		Port:            getEnv("PFCATALOG_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PFCATALOG_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PFCATALOG_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:     getEnvDuration("PFCATALOG_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PFCATALOG_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PFCATALOG_HEALTH_PORT", "9090"),
		CORSOrigins:     getEnvList("PFCATALOG_CORS_ORIGINS"),

		RateLimitPerMinute: getEnvInt("PFCATALOG_RATE_LIMIT_PER_MINUTE", 0),
		RateLimitBurst:     getEnvInt("PFCATALOG_RATE_LIMIT_BURST", 0),
	}
}

// loadUpstreamConfig loads upstream configuration from environment
func loadUpstreamConfig() UpstreamConfig {
	return UpstreamConfig{
		EnvironmentsFile: getEnv("PFCATALOG_ENVIRONMENTS_FILE", "environments.yaml"),
		Timeout:          getEnvDuration("PFCATALOG_UPSTREAM_TIMEOUT", 0),
	}
}

// loadSnapshotConfig loads snapshot store configuration from environment
func loadSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		RedisURL:      getEnv("PFCATALOG_REDIS_URL", ""),
		RedisPassword: getEnv("PFCATALOG_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("PFCATALOG_REDIS_DB", -1),
		TTL:           getEnvDuration("PFCATALOG_SNAPSHOT_TTL", 15*time.Minute),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("PFCATALOG_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("PFCATALOG_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PFCATALOG_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PFCATALOG_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PFCATALOG_OTEL_SERVICE_NAME", "pfcatalog"),
		OTelServiceVersion: getEnv("PFCATALOG_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PFCATALOG_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Server.RateLimitPerMinute < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}

	if c.Upstream.EnvironmentsFile == "" {
		return fmt.Errorf("environments file is required")
	}
	if c.Upstream.Timeout < 0 {
		return fmt.Errorf("upstream timeout must not be negative")
	}

	if c.Snapshot.Enabled() && c.Snapshot.TTL <= 0 {
		return fmt.Errorf("snapshot TTL must be positive when redis is configured")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
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

// getEnvList returns a comma-separated environment variable as a slice
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
