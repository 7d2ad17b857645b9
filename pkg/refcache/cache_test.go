package refcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pfcatalog/pkg/config"
	"github.com/platinummonkey/pfcatalog/pkg/observability"
	"github.com/platinummonkey/pfcatalog/pkg/storage"
	"github.com/platinummonkey/pfcatalog/pkg/upstream"
)

// fakeFetcher serves canned collections and counts calls per (env, resource)
type fakeFetcher struct {
	mu       sync.Mutex
	items    map[string][]upstream.Record
	failures map[string]error
	calls    map[string]int
	gate     chan struct{}
	panicOn  string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		items:    make(map[string][]upstream.Record),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeFetcher) set(resource string, items ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := make([]upstream.Record, 0, len(items))
	for _, item := range items {
		records = append(records, upstream.Record(item))
	}
	f.items[resource] = records
}

func (f *fakeFetcher) fail(resource string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, resource)
		return
	}
	f.failures[resource] = err
}

func (f *fakeFetcher) count(env, resource string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[env+"|"+resource]
}

func (f *fakeFetcher) FetchCollection(ctx context.Context, env *config.Environment, resource string) ([]upstream.Record, error) {
	f.mu.Lock()
	f.calls[env.Name+"|"+resource]++
	gate := f.gate
	err := f.failures[resource]
	items := f.items[resource]
	shouldPanic := f.panicOn == resource
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if shouldPanic {
		panic("fetcher exploded")
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

// memoryStore is an in-memory storage.SnapshotStore
type memoryStore struct {
	mu     sync.Mutex
	snaps  map[string]*storage.Snapshot
	getErr error
	putErr error
	puts   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{snaps: make(map[string]*storage.Snapshot)}
}

func (m *memoryStore) GetSnapshot(ctx context.Context, env, kind string) (*storage.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.snaps[env+"|"+kind], nil
}

func (m *memoryStore) PutSnapshot(ctx context.Context, snap *storage.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.snaps[snap.Environment+"|"+snap.Kind] = snap
	return nil
}

func (m *memoryStore) Ping(ctx context.Context) error { return nil }
func (m *memoryStore) Close() error                   { return nil }

func env(name string) *config.Environment {
	return &config.Environment{Name: name, BaseURL: "https://" + name + ".example.com", Username: "admin"}
}

func seededFetcher() *fakeFetcher {
	f := newFakeFetcher()
	f.set(upstream.ResourceSigningKeyPairs, `{"id":"kp-1","name":"Signing-2024"}`)
	f.set(upstream.ResourceDataStores, `{"id":"ds-1","name":"LDAP-Main"}`, `{"id":"ds-2"}`, `{"name":"orphan"}`)
	f.set(upstream.ResourceAccessTokenManagers, `{"id":"atm-1","name":"Default JWT"}`)
	f.set(upstream.ResourceOIDCPolicies, `{"id":"pol-1","name":"Employee OIDC"}`)
	return f
}

func TestEnsurePopulated_LoadsEveryKindOnce(t *testing.T) {
	fetcher := seededFetcher()
	cache := New(fetcher)
	qa := env("qa")

	cache.EnsurePopulated(context.Background(), qa)
	cache.EnsurePopulated(context.Background(), qa)

	for _, kind := range AllKinds() {
		assert.True(t, cache.Loaded("qa", kind), kind)
		assert.Equal(t, 1, fetcher.count("qa", kind.ResourcePath()), kind)
	}

	assert.Equal(t, "LDAP-Main", cache.Resolve("qa", KindDatastore, "ds-1"))
	assert.Equal(t, "ds-2", cache.Resolve("qa", KindDatastore, "ds-2"), "name falls back to id")
	assert.Equal(t, "Signing-2024", cache.Resolve("qa", KindCertificate, "kp-1"))
	assert.Equal(t, "Default JWT", cache.Resolve("qa", KindAccessTokenManager, "atm-1"))
	assert.Equal(t, "Employee OIDC", cache.Resolve("qa", KindOIDCPolicy, "pol-1"))
}

func TestEnsurePopulated_EnvironmentsAreIndependent(t *testing.T) {
	fetcher := seededFetcher()
	cache := New(fetcher)

	cache.EnsurePopulated(context.Background(), env("qa"))

	assert.Equal(t, "ds-1", cache.Resolve("dev", KindDatastore, "ds-1"), "dev is not loaded")
	assert.Equal(t, 0, fetcher.count("dev", upstream.ResourceDataStores))

	cache.EnsurePopulated(context.Background(), env("dev"))
	assert.Equal(t, 1, fetcher.count("dev", upstream.ResourceDataStores))
	assert.Equal(t, "LDAP-Main", cache.Resolve("dev", KindDatastore, "ds-1"))
}

func TestEnsurePopulated_ConcurrentCallersShareOneFetch(t *testing.T) {
	fetcher := seededFetcher()
	fetcher.gate = make(chan struct{})
	cache := New(fetcher)
	qa := env("qa")

	const callers = 20
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.EnsurePopulated(context.Background(), qa)
		}()
	}

	// Let callers pile up on the in-flight fetches before releasing them
	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	for _, kind := range AllKinds() {
		assert.Equal(t, 1, fetcher.count("qa", kind.ResourcePath()), kind)
	}
	assert.Equal(t, "LDAP-Main", cache.Resolve("qa", KindDatastore, "ds-1"))
}

func TestEnsurePopulated_FailureIsRetriedOnNextCall(t *testing.T) {
	fetcher := seededFetcher()
	fetcher.fail(upstream.ResourceSigningKeyPairs, &upstream.ResponseError{Environment: "qa", Resource: upstream.ResourceSigningKeyPairs, StatusCode: 503})

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cache := New(fetcher, WithMetrics(metrics))
	qa := env("qa")

	cache.EnsurePopulated(context.Background(), qa)

	assert.False(t, cache.Loaded("qa", KindCertificate))
	assert.True(t, cache.Loaded("qa", KindDatastore), "other kinds still load")
	assert.Equal(t, "kp-1", cache.Resolve("qa", KindCertificate, "kp-1"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RefCachePopulationsTotal.WithLabelValues("certificate", "failed")))

	status := findStatus(t, cache.Status("qa"), KindCertificate)
	assert.False(t, status.Loaded)
	assert.Contains(t, status.LastError, "503")

	fetcher.fail(upstream.ResourceSigningKeyPairs, nil)
	cache.EnsurePopulated(context.Background(), qa)

	assert.True(t, cache.Loaded("qa", KindCertificate))
	assert.Equal(t, "Signing-2024", cache.Resolve("qa", KindCertificate, "kp-1"))
	assert.Equal(t, 2, fetcher.count("qa", upstream.ResourceSigningKeyPairs))
	assert.Equal(t, 1, fetcher.count("qa", upstream.ResourceDataStores), "loaded kinds are not refetched")
	assert.Empty(t, findStatus(t, cache.Status("qa"), KindCertificate).LastError, "success clears the failure")

	cache.EnsurePopulated(context.Background(), qa)
	assert.Equal(t, 2, fetcher.count("qa", upstream.ResourceSigningKeyPairs), "loaded after retry stays loaded")
}

func TestEnsurePopulated_PanicIsContained(t *testing.T) {
	fetcher := seededFetcher()
	fetcher.panicOn = upstream.ResourceOIDCPolicies
	cache := New(fetcher)

	assert.NotPanics(t, func() {
		cache.EnsurePopulated(context.Background(), env("qa"))
	})
	assert.False(t, cache.Loaded("qa", KindOIDCPolicy))
	assert.True(t, cache.Loaded("qa", KindDatastore))
}

func TestEnsurePopulated_CanceledCallerDoesNotAbortLoad(t *testing.T) {
	fetcher := seededFetcher()
	fetcher.gate = make(chan struct{})
	cache := New(fetcher, WithKinds(KindDatastore))
	qa := env("qa")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cache.EnsurePopulated(ctx, qa)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EnsurePopulated did not return after cancellation")
	}

	close(fetcher.gate)
	require.Eventually(t, func() bool { return cache.Loaded("qa", KindDatastore) }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, fetcher.count("qa", upstream.ResourceDataStores))
}

func TestWithKinds(t *testing.T) {
	fetcher := seededFetcher()
	cache := New(fetcher, WithKinds(KindDatastore))

	cache.EnsurePopulated(context.Background(), env("qa"))

	assert.True(t, cache.Loaded("qa", KindDatastore))
	assert.False(t, cache.Loaded("qa", KindCertificate))
	assert.Equal(t, 0, fetcher.count("qa", upstream.ResourceSigningKeyPairs))
	assert.Len(t, cache.Status("qa"), 1)
}

func TestResolve(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cache := New(seededFetcher(), WithMetrics(metrics))
	cache.EnsurePopulated(context.Background(), env("qa"))

	tests := []struct {
		name   string
		env    string
		kind   Kind
		id     string
		want   string
		result string
	}{
		{name: "hit", env: "qa", kind: KindDatastore, id: "ds-1", want: "LDAP-Main", result: "hit"},
		{name: "unknown id", env: "qa", kind: KindDatastore, id: "ds-404", want: "ds-404", result: "miss"},
		{name: "empty id", env: "qa", kind: KindDatastore, id: "", want: "", result: "empty"},
		{name: "unloaded env", env: "prod", kind: KindCertificate, id: "kp-1", want: "kp-1", result: "unloaded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(metrics.RefCacheLookupsTotal.WithLabelValues(string(tt.kind), tt.result))
			assert.Equal(t, tt.want, cache.Resolve(tt.env, tt.kind, tt.id))
			after := testutil.ToFloat64(metrics.RefCacheLookupsTotal.WithLabelValues(string(tt.kind), tt.result))
			assert.Equal(t, before+1, after)
		})
	}
}

func TestForEnvironment(t *testing.T) {
	cache := New(seededFetcher())
	cache.EnsurePopulated(context.Background(), env("qa"))

	view := cache.ForEnvironment("qa")
	assert.Equal(t, "qa", view.Environment())
	assert.Equal(t, "LDAP-Main", view.Resolve(KindDatastore, "ds-1"))
	assert.Equal(t, "ds-1", cache.ForEnvironment("dev").Resolve(KindDatastore, "ds-1"))
}

func TestBuildTable(t *testing.T) {
	records := []upstream.Record{
		upstream.Record(`{"id":"a","name":"Alpha"}`),
		upstream.Record(`{"id":"b"}`),
		upstream.Record(`{"id":"c","name":""}`),
		upstream.Record(`{"name":"no id"}`),
		upstream.Record(`{"id":null,"name":"null id"}`),
		upstream.Record(`{"id":"","name":"empty id"}`),
		upstream.Record(`{"id":42,"name":"numeric"}`),
		upstream.Record(`not json`),
	}

	assert.Equal(t, map[string]string{
		"a":  "Alpha",
		"b":  "b",
		"c":  "c",
		"42": "numeric",
	}, BuildTable(records))

	assert.Empty(t, BuildTable(nil))
}

func TestSnapshotStore_HitAvoidsUpstream(t *testing.T) {
	fetcher := seededFetcher()
	store := newMemoryStore()
	loadedAt := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	store.snaps["qa|datastore"] = &storage.Snapshot{
		Environment: "qa",
		Kind:        "datastore",
		Entries:     map[string]string{"ds-1": "LDAP-From-Snapshot"},
		LoadedAt:    loadedAt,
	}

	cache := New(fetcher, WithSnapshotStore(store), WithKinds(KindDatastore))
	cache.EnsurePopulated(context.Background(), env("qa"))

	assert.Equal(t, 0, fetcher.count("qa", upstream.ResourceDataStores))
	assert.Equal(t, "LDAP-From-Snapshot", cache.Resolve("qa", KindDatastore, "ds-1"))

	status := findStatus(t, cache.Status("qa"), KindDatastore)
	assert.Equal(t, SourceSnapshot, status.Source)
	require.NotNil(t, status.LoadedAt)
	assert.True(t, loadedAt.Equal(*status.LoadedAt))
}

func TestSnapshotStore_UpstreamLoadIsWrittenBack(t *testing.T) {
	store := newMemoryStore()
	cache := New(seededFetcher(), WithSnapshotStore(store), WithKinds(KindDatastore))
	fixed := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	cache.now = func() time.Time { return fixed }

	cache.EnsurePopulated(context.Background(), env("qa"))

	snap := store.snaps["qa|datastore"]
	require.NotNil(t, snap)
	assert.Equal(t, "LDAP-Main", snap.Entries["ds-1"])
	assert.True(t, fixed.Equal(snap.LoadedAt))
}

func TestSnapshotStore_ErrorsAreIgnored(t *testing.T) {
	fetcher := seededFetcher()
	store := newMemoryStore()
	store.getErr = errors.New("redis down")
	store.putErr = errors.New("redis down")

	cache := New(fetcher, WithSnapshotStore(store), WithKinds(KindDatastore))
	cache.EnsurePopulated(context.Background(), env("qa"))

	assert.True(t, cache.Loaded("qa", KindDatastore))
	assert.Equal(t, 1, fetcher.count("qa", upstream.ResourceDataStores))
	assert.Equal(t, 1, store.puts)
}

func TestSnapshotStore_SharedBetweenReplicas(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	newStore := func() *storage.RedisSnapshotStore {
		store, err := storage.NewRedisSnapshotStore(config.SnapshotConfig{
			RedisURL: "redis://" + mr.Addr(),
			RedisDB:  -1,
			TTL:      15 * time.Minute,
		})
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	}

	first := seededFetcher()
	New(first, WithSnapshotStore(newStore())).EnsurePopulated(context.Background(), env("qa"))

	second := seededFetcher()
	replica := New(second, WithSnapshotStore(newStore()))
	replica.EnsurePopulated(context.Background(), env("qa"))

	for _, kind := range AllKinds() {
		assert.Equal(t, 1, first.count("qa", kind.ResourcePath()), kind)
		assert.Equal(t, 0, second.count("qa", kind.ResourcePath()), kind)
	}
	assert.Equal(t, "LDAP-Main", replica.Resolve("qa", KindDatastore, "ds-1"))
}

func TestStatus(t *testing.T) {
	cache := New(seededFetcher(), WithKinds(KindCertificate, KindDatastore))

	assert.Empty(t, cache.Status(), "no environments seen yet")

	unloaded := cache.Status("prod")
	require.Len(t, unloaded, 2)
	assert.False(t, unloaded[0].Loaded)
	assert.Nil(t, unloaded[0].LoadedAt)

	cache.EnsurePopulated(context.Background(), env("qa"))
	cache.EnsurePopulated(context.Background(), env("dev"))

	all := cache.Status()
	require.Len(t, all, 4)
	assert.Equal(t, "dev", all[0].Environment)
	assert.Equal(t, KindCertificate, all[0].Kind)
	assert.Equal(t, "qa", all[3].Environment)
	assert.Equal(t, KindDatastore, all[3].Kind)
	assert.True(t, all[3].Loaded)
	assert.Equal(t, 2, all[3].Entries)
	assert.Equal(t, SourceUpstream, all[3].Source)
}

func findStatus(t *testing.T, statuses []PopulationStatus, kind Kind) PopulationStatus {
	t.Helper()
	for _, s := range statuses {
		if s.Kind == kind {
			return s
		}
	}
	t.Fatalf("no status for kind %s", kind)
	return PopulationStatus{}
}
