// Package refcache resolves admin API reference IDs to display names.
//
// Connection and client records point at other admin objects by ID: signing
// key pairs, datastores, access token managers and OIDC policies. The cache
// loads each of those collections once per environment and answers lookups
// from memory for the rest of the process lifetime.
//
//	cache := refcache.New(client, refcache.WithLogger(logger))
//	cache.EnsurePopulated(ctx, env)
//	name := cache.Resolve("qa", refcache.KindDatastore, "ds-1")
//
// Population rules:
//
//   - A loaded (environment, kind) pair is never fetched again.
//   - Concurrent callers share one in-flight fetch per pair.
//   - A failed fetch leaves the pair unloaded; the next EnsurePopulated call
//     makes one new attempt. Lookups meanwhile echo the ID back.
//   - With a snapshot store configured, a pair is first read from the store
//     and upstream loads are written back to it.
//
// Entries are never evicted or refreshed.
package refcache
