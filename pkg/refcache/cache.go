package refcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/pfcatalog/pkg/config"
	"github.com/platinummonkey/pfcatalog/pkg/observability"
	"github.com/platinummonkey/pfcatalog/pkg/storage"
	"github.com/platinummonkey/pfcatalog/pkg/upstream"
)

// Population sources
const (
	SourceUpstream = "upstream"
	SourceSnapshot = "snapshot"
)

// Lookup results recorded in metrics
const (
	lookupHit      = "hit"
	lookupMiss     = "miss"
	lookupUnloaded = "unloaded"
	lookupEmpty    = "empty"
)

type tableKey struct {
	env  string
	kind Kind
}

func (k tableKey) String() string {
	return k.env + "/" + string(k.kind)
}

// table is the loaded id to name map of one (environment, kind) pair.
// It is never mutated after install.
type table struct {
	names    map[string]string
	loadedAt time.Time
	source   string
}

type failure struct {
	message string
	at      time.Time
}

// Option configures a Cache
type Option func(*Cache)

// WithLogger sets the cache logger
func WithLogger(logger *observability.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records lookups and populations in Prometheus
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Cache) {
		c.metrics = metrics
	}
}

// WithSnapshotStore shares loaded tables through an external store
func WithSnapshotStore(store storage.SnapshotStore) Option {
	return func(c *Cache) {
		c.store = store
	}
}

// WithKinds limits which kinds EnsurePopulated loads
func WithKinds(kinds ...Kind) Option {
	return func(c *Cache) {
		c.kinds = append([]Kind(nil), kinds...)
	}
}

// Cache maps (environment, kind, id) to display names
type Cache struct {
	fetcher upstream.Fetcher
	logger  *observability.Logger
	metrics *observability.Metrics
	store   storage.SnapshotStore
	kinds   []Kind
	now     func() time.Time

	mu       sync.RWMutex
	tables   map[tableKey]*table
	failures map[tableKey]failure
	envs     map[string]struct{}

	group singleflight.Group
}

// New creates an empty cache that loads through fetcher
func New(fetcher upstream.Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:  fetcher,
		logger:   observability.NopLogger(),
		kinds:    AllKinds(),
		now:      time.Now,
		tables:   make(map[tableKey]*table),
		failures: make(map[tableKey]failure),
		envs:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsurePopulated loads every kind not yet loaded for env, concurrently.
// It never fails: a kind whose fetch fails stays unloaded and is retried on
// the next call. If ctx ends first the call returns while in-flight loads
// finish in the background for the next caller.
func (c *Cache) EnsurePopulated(ctx context.Context, env *config.Environment) {
	c.mu.Lock()
	c.envs[env.Name] = struct{}{}
	c.mu.Unlock()

	var g errgroup.Group
	for _, kind := range c.kinds {
		key := tableKey{env: env.Name, kind: kind}
		if c.loaded(key) {
			continue
		}
		g.Go(func() error {
			c.populate(ctx, env, key)
			return nil
		})
	}
	_ = g.Wait()
}

// populate joins or starts the single in-flight load of key
func (c *Cache) populate(ctx context.Context, env *config.Environment, key tableKey) {
	ch := c.group.DoChan(key.String(), func() (result interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = observability.PanicError(r)
				c.logger.WithFields(map[string]interface{}{
					"environment": key.env,
					"kind":        string(key.kind),
				}).WithError(err).Error("reference population panicked")
				c.recordFailure(key, err)
			}
		}()

		// Another caller may have finished loading while we waited
		if c.loaded(key) {
			return nil, nil
		}
		c.load(context.WithoutCancel(ctx), env, key)
		return nil, nil
	})

	select {
	case <-ch:
	case <-ctx.Done():
	}
}

func (c *Cache) load(ctx context.Context, env *config.Environment, key tableKey) {
	ctx, span := observability.Tracer().Start(ctx, "refcache.populate",
		trace.WithAttributes(
			attribute.String("pfcatalog.environment", key.env),
			attribute.String("pfcatalog.kind", string(key.kind)),
		),
	)
	defer span.End()

	logger := observability.UpdateLoggerWithTraceContext(ctx, c.logger).WithFields(map[string]interface{}{
		"environment": key.env,
		"kind":        string(key.kind),
	})

	if snap := c.readSnapshot(ctx, key, logger); snap != nil {
		c.install(key, snap.Entries, snap.LoadedAt, SourceSnapshot)
		c.metrics.RecordPopulation(string(key.kind), SourceSnapshot)
		span.SetAttributes(attribute.String("pfcatalog.source", SourceSnapshot))
		logger.WithField("entries", len(snap.Entries)).Info("reference table loaded from snapshot")
		return
	}

	records, err := c.fetcher.FetchCollection(ctx, env, key.kind.ResourcePath())
	if err != nil {
		c.recordFailure(key, err)
		c.metrics.RecordPopulation(string(key.kind), "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "population failed")
		logger.WithError(err).Warn("reference population failed; ids will be shown unresolved")
		return
	}

	names := BuildTable(records)
	loadedAt := c.now()
	c.install(key, names, loadedAt, SourceUpstream)
	c.metrics.RecordPopulation(string(key.kind), SourceUpstream)
	span.SetAttributes(
		attribute.String("pfcatalog.source", SourceUpstream),
		attribute.Int("pfcatalog.entries", len(names)),
	)
	logger.WithField("entries", len(names)).Info("reference table loaded")

	c.writeSnapshot(ctx, key, names, loadedAt, logger)
}

func (c *Cache) readSnapshot(ctx context.Context, key tableKey, logger *observability.Logger) *storage.Snapshot {
	if c.store == nil {
		return nil
	}

	snap, err := c.store.GetSnapshot(ctx, key.env, string(key.kind))
	switch {
	case err != nil:
		c.metrics.RecordSnapshotOperation("get", "error")
		logger.WithError(err).Warn("snapshot read failed")
		return nil
	case snap == nil:
		c.metrics.RecordSnapshotOperation("get", "miss")
		return nil
	default:
		c.metrics.RecordSnapshotOperation("get", "hit")
		return snap
	}
}

func (c *Cache) writeSnapshot(ctx context.Context, key tableKey, names map[string]string, loadedAt time.Time, logger *observability.Logger) {
	if c.store == nil {
		return
	}

	err := c.store.PutSnapshot(ctx, &storage.Snapshot{
		Environment: key.env,
		Kind:        string(key.kind),
		Entries:     names,
		LoadedAt:    loadedAt,
	})
	if err != nil {
		c.metrics.RecordSnapshotOperation("put", "error")
		logger.WithError(err).Warn("snapshot write failed")
		return
	}
	c.metrics.RecordSnapshotOperation("put", "success")
}

// BuildTable maps each record's id to its name. The name falls back to the
// id; records without an id are skipped.
func BuildTable(records []upstream.Record) map[string]string {
	names := make(map[string]string, len(records))
	for _, rec := range records {
		id := gjson.GetBytes(rec, "id")
		if !id.Exists() || id.Type == gjson.Null || id.String() == "" {
			continue
		}
		name := gjson.GetBytes(rec, "name").String()
		if name == "" {
			name = id.String()
		}
		names[id.String()] = name
	}
	return names
}

func (c *Cache) install(key tableKey, names map[string]string, loadedAt time.Time, source string) {
	if names == nil {
		names = map[string]string{}
	}

	c.mu.Lock()
	c.tables[key] = &table{names: names, loadedAt: loadedAt, source: source}
	delete(c.failures, key)
	c.mu.Unlock()

	c.metrics.SetCacheEntries(key.env, string(key.kind), len(names))
}

func (c *Cache) recordFailure(key tableKey, err error) {
	c.mu.Lock()
	c.failures[key] = failure{message: err.Error(), at: c.now()}
	c.mu.Unlock()
}

func (c *Cache) loaded(key tableKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tables[key]
	return ok
}

// Loaded reports whether kind has been loaded for envName
func (c *Cache) Loaded(envName string, kind Kind) bool {
	return c.loaded(tableKey{env: envName, kind: kind})
}

// Resolve returns the display name for id, or id itself when id is empty,
// the kind is not loaded for envName, or id is unknown
func (c *Cache) Resolve(envName string, kind Kind, id string) string {
	if id == "" {
		c.metrics.RecordLookup(string(kind), lookupEmpty)
		return id
	}

	c.mu.RLock()
	t, ok := c.tables[tableKey{env: envName, kind: kind}]
	c.mu.RUnlock()

	if !ok {
		c.metrics.RecordLookup(string(kind), lookupUnloaded)
		return id
	}

	name, ok := t.names[id]
	if !ok {
		c.metrics.RecordLookup(string(kind), lookupMiss)
		return id
	}

	c.metrics.RecordLookup(string(kind), lookupHit)
	return name
}

// ForEnvironment returns a resolver bound to envName
func (c *Cache) ForEnvironment(envName string) View {
	return View{cache: c, env: envName}
}

// View resolves references within one environment
type View struct {
	cache *Cache
	env   string
}

// Environment returns the environment the view is bound to
func (v View) Environment() string {
	return v.env
}

// Resolve returns the display name for id within the view's environment
func (v View) Resolve(kind Kind, id string) string {
	return v.cache.Resolve(v.env, kind, id)
}

func (v View) String() string {
	return fmt.Sprintf("refcache.View(%s)", v.env)
}
