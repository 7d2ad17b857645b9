package refcache

import (
	"sort"
	"time"
)

// PopulationStatus describes one (environment, kind) pair
type PopulationStatus struct {
	Environment string     `json:"environment"`
	Kind        Kind       `json:"kind"`
	Loaded      bool       `json:"loaded"`
	Entries     int        `json:"entries"`
	LoadedAt    *time.Time `json:"loadedAt,omitempty"`
	Source      string     `json:"source,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	LastFailure *time.Time `json:"lastFailureAt,omitempty"`
}

// Status reports every configured kind for the given environments, or for
// every environment EnsurePopulated has seen when none are given. Results
// are sorted by environment, then kind order.
func (c *Cache) Status(envNames ...string) []PopulationStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(envNames) == 0 {
		for env := range c.envs {
			envNames = append(envNames, env)
		}
	}
	envNames = append([]string(nil), envNames...)
	sort.Strings(envNames)

	statuses := make([]PopulationStatus, 0, len(envNames)*len(c.kinds))
	for _, env := range envNames {
		for _, kind := range c.kinds {
			key := tableKey{env: env, kind: kind}
			status := PopulationStatus{Environment: env, Kind: kind}

			if t, ok := c.tables[key]; ok {
				loadedAt := t.loadedAt
				status.Loaded = true
				status.Entries = len(t.names)
				status.LoadedAt = &loadedAt
				status.Source = t.source
			}
			if f, ok := c.failures[key]; ok {
				at := f.at
				status.LastError = f.message
				status.LastFailure = &at
			}

			statuses = append(statuses, status)
		}
	}
	return statuses
}
