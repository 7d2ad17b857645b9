package api

import "github.com/platinummonkey/pfcatalog/pkg/refcache"

// EnvironmentsResponse is the body of GET /environments
type EnvironmentsResponse struct {
	Environments []string `json:"environments"`
}

// CacheStatusResponse is the body of GET /cache/status
type CacheStatusResponse struct {
	References []refcache.PopulationStatus `json:"references"`
}
