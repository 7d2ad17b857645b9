// Package storage provides the shared snapshot store for reference tables.
//
// A snapshot is one environment's id to name table for one reference kind,
// as loaded from the admin API. Replicas behind a load balancer share
// snapshots through Redis so only the first replica to populate a kind pays
// for the upstream fetch. Snapshots expire after a TTL so a later process
// start still refreshes from the upstream.
//
//	store, err := storage.NewRedisSnapshotStore(cfg.Snapshot)
//	snap, err := store.GetSnapshot(ctx, "qa", "datastore") // nil, nil on miss
//
// The store is optional; the reference cache works without one.
package storage
