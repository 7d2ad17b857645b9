package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/pfcatalog/pkg/config"
	"github.com/platinummonkey/pfcatalog/pkg/normalize"
	"github.com/platinummonkey/pfcatalog/pkg/observability"
	"github.com/platinummonkey/pfcatalog/pkg/refcache"
	"github.com/platinummonkey/pfcatalog/pkg/upstream"
)

var tracer = otel.Tracer("pfcatalog/catalog")

// ErrUpstream marks a failed primary collection fetch
var ErrUpstream = errors.New("upstream request failed")

// Dataset names
const (
	DatasetConnections = "connections"
	DatasetClients     = "clients"
)

// References populates and resolves reference tables
type References interface {
	EnsurePopulated(ctx context.Context, env *config.Environment)
	ForEnvironment(envName string) refcache.View
	Status(envNames ...string) []refcache.PopulationStatus
}

// Service lists normalized records per environment
type Service struct {
	envs    *config.Environments
	fetcher upstream.Fetcher
	refs    References
	logger  *observability.Logger
}

// NewService creates a catalog service
func NewService(envs *config.Environments, fetcher upstream.Fetcher, refs References) *Service {
	return &Service{
		envs:    envs,
		fetcher: fetcher,
		refs:    refs,
		logger:  observability.NopLogger(),
	}
}

// WithLogger sets the service logger
func (s *Service) WithLogger(logger *observability.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Environments returns the configured environment names in sorted order
func (s *Service) Environments() []string {
	return s.envs.Names()
}

// Connections returns the normalized SAML SP connections of envName
func (s *Service) Connections(ctx context.Context, envName string) ([]normalize.Connection, error) {
	return list(ctx, s, envName, DatasetConnections, upstream.ResourceSPConnections, normalize.NormalizeConnection)
}

// Clients returns the normalized OAuth clients of envName
func (s *Service) Clients(ctx context.Context, envName string) ([]normalize.Client, error) {
	return list(ctx, s, envName, DatasetClients, upstream.ResourceOAuthClients, normalize.NormalizeClient)
}

func list[T any](
	ctx context.Context,
	s *Service,
	envName, dataset, resource string,
	normalizeRecord func(upstream.Record, normalize.Resolver) T,
) ([]T, error) {
	env, err := s.envs.Lookup(envName)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "catalog."+dataset,
		trace.WithAttributes(
			attribute.String("pfcatalog.environment", env.Name),
			attribute.String("pfcatalog.dataset", dataset),
		),
	)
	defer span.End()

	logger := observability.UpdateLoggerWithTraceContext(ctx, s.logger).WithFields(map[string]interface{}{
		"environment": env.Name,
		"dataset":     dataset,
	})

	s.refs.EnsurePopulated(ctx, env)

	records, err := s.fetcher.FetchCollection(ctx, env, resource)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "primary fetch failed")
		logger.WithError(err).Error("primary collection fetch failed")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	view := s.refs.ForEnvironment(env.Name)
	out := make([]T, 0, len(records))
	for _, rec := range records {
		out = append(out, normalizeRecord(rec, view))
	}

	span.SetAttributes(attribute.Int("pfcatalog.records", len(out)))
	logger.WithField("records", len(out)).Debug("catalog listed")
	return out, nil
}

// CacheStatus reports reference population for envName, or for every
// configured environment when envName is empty. With populate set the
// selected environments are populated first.
func (s *Service) CacheStatus(ctx context.Context, envName string, populate bool) ([]refcache.PopulationStatus, error) {
	names := s.envs.Names()
	if envName != "" {
		env, err := s.envs.Lookup(envName)
		if err != nil {
			return nil, err
		}
		names = []string{env.Name}
	}

	if populate {
		for _, name := range names {
			env, err := s.envs.Lookup(name)
			if err != nil {
				return nil, err
			}
			s.refs.EnsurePopulated(ctx, env)
		}
	}

	return s.refs.Status(names...), nil
}
