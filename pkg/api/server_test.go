package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pfcatalog/pkg/catalog"
	"github.com/platinummonkey/pfcatalog/pkg/config"
	"github.com/platinummonkey/pfcatalog/pkg/normalize"
	"github.com/platinummonkey/pfcatalog/pkg/refcache"
	"github.com/platinummonkey/pfcatalog/pkg/upstream"
)

// fakeAdminAPI serves canned admin API collections and counts hits per path
type fakeAdminAPI struct {
	mu       sync.Mutex
	hits     map[string]int
	bodies   map[string]string
	statuses map[string]int
}

func (f *fakeAdminAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	body, ok := f.bodies[r.URL.Path]
	status := f.statuses[r.URL.Path]
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if !ok {
		body = `{"items":[]}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (f *fakeAdminAPI) count(resource string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[upstream.AdminAPIPrefix+"/"+resource]
}

func newStack(t *testing.T, admin *fakeAdminAPI) *Server {
	t.Helper()
	upstreamServer := httptest.NewServer(admin)
	t.Cleanup(upstreamServer.Close)

	envs, err := config.NewEnvironments(&config.Environment{
		Name:     "qa",
		BaseURL:  upstreamServer.URL,
		Username: "administrator",
		Password: "secret",
	})
	require.NoError(t, err)

	client := upstream.NewClient()
	cache := refcache.New(client)
	return NewServer(catalog.NewService(envs, client, cache))
}

func TestEndToEnd_Connections(t *testing.T) {
	admin := &fakeAdminAPI{
		hits: map[string]int{},
		bodies: map[string]string{
			upstream.AdminAPIPrefix + "/dataStores":        `{"items":[{"id":"ds-1","name":"Finance DB"}]}`,
			upstream.AdminAPIPrefix + "/keyPairs/signing":  `{"items":[{"id":"kp-1","name":"sso-signing"}]}`,
			upstream.AdminAPIPrefix + "/idp/sp-connections": `{"items":[
				{"name":"Payroll","entityId":"urn:payroll","active":true,
				 "attributeMapping":{"dataStoreRef":{"id":"ds-1"}},
				 "credentials":{"signingSettings":{"signingKeyPairRef":{"id":"kp-1"}}}},
				{"name":"Travel","attributeMapping":{"dataStoreRef":{"id":"ds-missing"}}}
			]}`,
		},
		statuses: map[string]int{},
	}
	server := newStack(t, admin)

	for i := 0; i < 2; i++ {
		rec := get(t, server, "/connections?env=qa")
		require.Equal(t, http.StatusOK, rec.Code)

		var body []normalize.Connection
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body, 2)
		assert.Equal(t, "Finance DB", body[0].DataStore)
		assert.Equal(t, "sso-signing", body[0].CertificateName)
		assert.Equal(t, "ds-missing", body[1].DataStore)
	}

	assert.Equal(t, 1, admin.count(upstream.ResourceDataStores))
	assert.Equal(t, 1, admin.count(upstream.ResourceSigningKeyPairs))
	assert.Equal(t, 2, admin.count(upstream.ResourceSPConnections))
}

func TestEndToEnd_UpstreamFailure(t *testing.T) {
	admin := &fakeAdminAPI{
		hits:     map[string]int{},
		bodies:   map[string]string{},
		statuses: map[string]int{upstream.AdminAPIPrefix + "/oauth/clients": http.StatusUnauthorized},
	}
	server := newStack(t, admin)

	rec := get(t, server, "/clients?env=qa")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"upstream request failed"}`, rec.Body.String())

	rec = get(t, server, "/clients")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"environment is required"}`, rec.Body.String())

	rec = get(t, server, "/clients?env=prod")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid environment: prod"}`, rec.Body.String())
}

func TestEndToEnd_TransportFailure(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	envs, err := config.NewEnvironments(&config.Environment{Name: "qa", BaseURL: url, Username: "admin"})
	require.NoError(t, err)
	client := upstream.NewClient()
	server := NewServer(catalog.NewService(envs, client, refcache.New(client)))

	rec := get(t, server, "/connections?env=qa")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"upstream request failed"}`, rec.Body.String())
}
