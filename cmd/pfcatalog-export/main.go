package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/pfcatalog/pkg/catalog"
	"github.com/platinummonkey/pfcatalog/pkg/cli"
	"github.com/platinummonkey/pfcatalog/pkg/config"
	"github.com/platinummonkey/pfcatalog/pkg/observability"
	"github.com/platinummonkey/pfcatalog/pkg/refcache"
	"github.com/platinummonkey/pfcatalog/pkg/upstream"
)

func main() {
	environmentsFile := flag.String("environments", getEnv("PFCATALOG_ENVIRONMENTS_FILE", "environments.yaml"), "Environments YAML file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	verbose := flag.Bool("v", false, "Log upstream and cache activity to stderr")
	flag.Parse()

	logger := setupLogger(*logLevel)

	envs, err := config.LoadEnvironments(*environmentsFile)
	if err != nil {
		logger.Fatalf("Failed to load environments: %v", err)
	}

	// Library packages log through slog; keep them quiet unless asked
	var internal *observability.Logger
	if *verbose {
		internal = observability.NewLogger(observability.DebugLevel, os.Stderr)
	} else {
		internal = observability.NewLogger(observability.ErrorLevel, io.Discard)
	}

	client := upstream.NewClient(upstream.WithLogger(internal))
	cache := refcache.New(client, refcache.WithLogger(internal))
	svc := catalog.NewService(envs, client, cache).WithLogger(internal)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(&cli.App{Catalog: svc, Logger: logger, Out: os.Stdout})
	if err := root.Execute(ctx, os.Stdout, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
