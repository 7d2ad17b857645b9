// Package catalog assembles the normalized connection and client lists for
// one environment. It is shared by the HTTP API and the export CLI.
//
// Each listing resolves the environment, makes sure the reference tables for
// it are populated, fetches the primary collection once and normalizes every
// record against the environment's reference view:
//
//	svc := catalog.NewService(envs, client, cache)
//	conns, err := svc.Connections(ctx, "qa")
//
// Unknown environments fail with a *config.ConfigError. Primary fetch
// failures wrap ErrUpstream. Reference population failures never fail a
// listing; affected fields keep their raw IDs.
package catalog
