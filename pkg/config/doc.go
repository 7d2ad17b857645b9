// Package config provides application configuration from environment variables
// and the upstream environment table from a YAML file.
//
// # Overview
//
// Process settings are read from PFCATALOG_* variables with defaults for all of
// them. The set of upstream admin API deployments (dev, qa, prod, ...) is loaded
// once at startup and never changes for the life of the process.
//
// # Configuration Structure
//
// Server settings:
//
//	PFCATALOG_HOST="0.0.0.0"
//	PFCATALOG_PORT="8080"
//	PFCATALOG_HEALTH_PORT="9090"
//	PFCATALOG_CORS_ORIGINS="http://localhost:5173"
//
// Upstream settings:
//
//	PFCATALOG_ENVIRONMENTS_FILE="/etc/pfcatalog/environments.yaml"
//	PFCATALOG_UPSTREAM_TIMEOUT="0s"  # zero keeps transport defaults
//
// Shared reference snapshots (optional):
//
//	PFCATALOG_REDIS_URL="redis://localhost:6379"
//	PFCATALOG_SNAPSHOT_TTL="15m"
//
// Observability settings:
//
//	PFCATALOG_LOG_LEVEL="info"  # debug, info, warn, error
//	PFCATALOG_METRICS_ENABLED="true"
//	PFCATALOG_OTEL_ENABLED="true"
//	PFCATALOG_OTEL_ENDPOINT="otel-collector:4317"
//
// # Environment File
//
//	environments:
//	  dev:
//	    base_url: https://pf-dev.example.com:9999
//	    username: administrator
//	    password: ${PF_DEV_PASSWORD}
//	    verify_ssl: false
//	  qa:
//	    base_url: https://pf-qa.example.com:9999
//	    basic_token: ${PF_QA_TOKEN}
//
// Lookups of a missing or unknown name return a *ConfigError, which wraps
// ErrUnknownEnvironment.
//
// # Related Packages
//
//   - pkg/upstream: Uses environment credentials and TLS policy
//   - pkg/observability: Uses observability configuration
package config
