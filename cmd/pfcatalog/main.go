package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/pfcatalog/pkg/api"
	"github.com/platinummonkey/pfcatalog/pkg/catalog"
	"github.com/platinummonkey/pfcatalog/pkg/config"
	"github.com/platinummonkey/pfcatalog/pkg/middleware"
	"github.com/platinummonkey/pfcatalog/pkg/observability"
	"github.com/platinummonkey/pfcatalog/pkg/refcache"
	"github.com/platinummonkey/pfcatalog/pkg/storage"
	"github.com/platinummonkey/pfcatalog/pkg/upstream"
)

// version is set at build time
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	envs, err := config.LoadEnvironments(cfg.Upstream.EnvironmentsFile)
	if err != nil {
		return err
	}
	logger.WithField("environments", envs.Names()).Info("Environments loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)
	}

	client := upstream.NewClient(
		upstream.WithLogger(logger),
		upstream.WithMetrics(metrics),
		upstream.WithTimeout(cfg.Upstream.Timeout),
	)

	cacheOpts := []refcache.Option{refcache.WithLogger(logger), refcache.WithMetrics(metrics)}
	var store *storage.RedisSnapshotStore
	var redisClient *redis.Client
	if cfg.Snapshot.Enabled() {
		store, err = storage.NewRedisSnapshotStore(cfg.Snapshot)
		if err != nil {
			logger.WithError(err).Warn("Snapshot store unavailable; reference tables load from upstream only")
			store = nil
		} else {
			cacheOpts = append(cacheOpts, refcache.WithSnapshotStore(store))
			redisClient = store.Client()
		}
	}

	cache := refcache.New(client, cacheOpts...)
	svc := catalog.NewService(envs, client, cache).WithLogger(logger)

	apiServer := api.NewServer(svc,
		api.WithLogger(logger),
		api.WithMetrics(metrics),
		api.WithCORSOrigins(cfg.Server.CORSOrigins),
		api.WithRateLimit(newRateLimiter(ctx, cfg.Server, redisClient)),
	)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(redisClient, envs.Len(), version))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, httpServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	if store != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return store.Close()
		})
	}

	for _, srv := range []*http.Server{httpServer, healthServer} {
		go func(srv *http.Server) {
			defer observability.RecoverPanic(logger, "http server "+srv.Addr)
			logger.WithField("addr", srv.Addr).Info("Starting HTTP server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).WithField("addr", srv.Addr).Error("HTTP server failed")
				cancel()
			}
		}(srv)
	}

	return shutdown.WaitForShutdown(ctx)
}

// newRateLimiter returns nil when rate limiting is off. Instances share
// budgets through Redis when the snapshot store is connected.
func newRateLimiter(ctx context.Context, cfg config.ServerConfig, redisClient *redis.Client) middleware.Limiter {
	if cfg.RateLimitPerMinute == 0 {
		return nil
	}
	limitCfg := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.RateLimitBurst,
	}
	if redisClient != nil {
		return middleware.NewDistributedRateLimiter(redisClient, limitCfg, "")
	}
	limiter := middleware.NewRateLimiter(limitCfg)
	limiter.StartCleanup(ctx)
	return limiter
}
