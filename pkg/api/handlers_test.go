package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/platinummonkey/pfcatalog/pkg/catalog"
	"github.com/platinummonkey/pfcatalog/pkg/config"
	"github.com/platinummonkey/pfcatalog/pkg/httputil"
	"github.com/platinummonkey/pfcatalog/pkg/middleware"
	"github.com/platinummonkey/pfcatalog/pkg/normalize"
	"github.com/platinummonkey/pfcatalog/pkg/observability"
	"github.com/platinummonkey/pfcatalog/pkg/refcache"
	"github.com/platinummonkey/pfcatalog/pkg/upstream"
)

// stubCatalog is a canned Catalog for handler tests
type stubCatalog struct {
	connections []normalize.Connection
	clients     []normalize.Client
	statuses    []refcache.PopulationStatus
	err         error

	lastEnv      string
	lastPopulate bool
}

func (c *stubCatalog) Connections(_ context.Context, env string) ([]normalize.Connection, error) {
	c.lastEnv = env
	return c.connections, c.err
}

func (c *stubCatalog) Clients(_ context.Context, env string) ([]normalize.Client, error) {
	c.lastEnv = env
	return c.clients, c.err
}

func (c *stubCatalog) Environments() []string {
	return []string{"dev", "qa"}
}

func (c *stubCatalog) CacheStatus(_ context.Context, env string, populate bool) ([]refcache.PopulationStatus, error) {
	c.lastEnv = env
	c.lastPopulate = populate
	return c.statuses, c.err
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestListRoutes(t *testing.T) {
	cat := &stubCatalog{
		connections: []normalize.Connection{
			normalize.NormalizeConnection(upstream.Record(`{"name":"Payroll"}`), nil),
		},
		clients: []normalize.Client{
			normalize.NormalizeClient(upstream.Record(`{"clientId":"c1","enabled":true}`), nil),
		},
	}
	server := NewServer(cat)

	tests := []struct {
		path  string
		field string
		want  string
	}{
		{path: "/connections?env=qa", field: "appName", want: "Payroll"},
		{path: "/api/saml-connections?env=qa", field: "appName", want: "Payroll"},
		{path: "/clients?env=qa", field: "clientID", want: "c1"},
		{path: "/api/oauth-connections?env=qa", field: "clientID", want: "c1"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, server, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.NotEmpty(t, rec.Header().Get(httputil.RequestIDHeader))

			var body []map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Len(t, body, 1)
			assert.Equal(t, tt.want, body[0][tt.field])
			assert.Equal(t, "qa", cat.lastEnv)
		})
	}
}

func TestListRoutes_EmptyListIsArray(t *testing.T) {
	server := NewServer(&stubCatalog{connections: []normalize.Connection{}})

	rec := get(t, server, "/connections?env=qa")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "missing environment",
			err:     &config.ConfigError{},
			status:  http.StatusBadRequest,
			message: "environment is required",
		},
		{
			name:    "unknown environment",
			err:     &config.ConfigError{Name: "prod"},
			status:  http.StatusBadRequest,
			message: "invalid environment: prod",
		},
		{
			name:    "upstream failure",
			err:     fmt.Errorf("%w: %w", catalog.ErrUpstream, &upstream.ResponseError{Environment: "qa", StatusCode: 401, Body: "secret detail"}),
			status:  http.StatusBadGateway,
			message: "upstream request failed",
		},
		{
			name:    "unexpected",
			err:     fmt.Errorf("boom"),
			status:  http.StatusInternalServerError,
			message: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer(&stubCatalog{err: tt.err})
			for _, path := range []string{"/connections?env=x", "/clients?env=x", "/clients/export?env=x", "/cache/status?env=x"} {
				rec := get(t, server, path)
				assert.Equal(t, tt.status, rec.Code, path)
				assert.Equal(t, tt.message, decodeError(t, rec), path)
			}
		})
	}
}

func TestFilters(t *testing.T) {
	cat := &stubCatalog{connections: []normalize.Connection{
		normalize.NormalizeConnection(upstream.Record(`{"name":"Payroll","protocol":"SAML20"}`), nil),
		normalize.NormalizeConnection(upstream.Record(`{"name":"Travel","protocol":"SAML20"}`), nil),
		normalize.NormalizeConnection(upstream.Record(`{"name":"payments","protocol":"SAML11"}`), nil),
	}}
	server := NewServer(cat)

	rec := get(t, server, "/connections?env=qa&filter=appName:PAY&filter=protocol:saml20")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []normalize.Connection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "Payroll", body[0].AppName)

	rec = get(t, server, "/connections?env=qa&filter=bogus:x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "bogus")

	rec = get(t, server, "/connections?env=qa&filter=novalue")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExport(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	cat := &stubCatalog{clients: []normalize.Client{
		normalize.NormalizeClient(upstream.Record(`{"clientId":"c1","name":"Payroll","grantTypes":["A","B"]}`), nil),
	}}
	server := NewServer(cat, WithMetrics(metrics))

	rec := get(t, server, "/clients/export?env=qa")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="oauth_connections_qa.xlsx"`, rec.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Connections")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, normalize.ClientColumns(), rows[0])
	assert.Equal(t, []string{"c1", "Payroll", "INACTIVE", "A, B"}, rows[1][:4])

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ExportsTotal.WithLabelValues("clients", "success")))

	rec = get(t, server, "/connections/export?env=qa")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="saml_connections_qa.xlsx"`, rec.Header().Get("Content-Disposition"))
}

func TestEnvironments(t *testing.T) {
	rec := get(t, NewServer(&stubCatalog{}), "/environments")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"environments":["dev","qa"]}`, rec.Body.String())
}

func TestCacheStatus(t *testing.T) {
	cat := &stubCatalog{statuses: []refcache.PopulationStatus{
		{Environment: "qa", Kind: refcache.KindDatastore, Loaded: true, Entries: 2, Source: refcache.SourceUpstream},
	}}
	server := NewServer(cat)

	rec := get(t, server, "/cache/status?env=qa&populate=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, cat.lastPopulate)
	assert.Equal(t, "qa", cat.lastEnv)
	assert.JSONEq(t, `{"references":[{"environment":"qa","kind":"datastore","loaded":true,"entries":2,"source":"upstream"}]}`, rec.Body.String())

	rec = get(t, server, "/cache/status?populate=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouting(t *testing.T) {
	server := NewServer(&stubCatalog{})

	rec := get(t, server, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/connections?env=qa", nil)
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsUseRouteTemplate(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	server := NewServer(&stubCatalog{}, WithMetrics(metrics))

	get(t, server, "/connections?env=qa")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/connections", "200")))
}

func TestRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	server := NewServer(&stubCatalog{connections: []normalize.Connection{}}, WithRateLimit(limiter))

	assert.Equal(t, http.StatusOK, get(t, server, "/connections?env=qa").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, server, "/connections/export?env=qa").Code)

	// Routes that never reach the admin API are not limited
	assert.Equal(t, http.StatusOK, get(t, server, "/environments").Code)
	assert.Equal(t, http.StatusOK, get(t, server, "/cache/status").Code)
}

func TestRateLimit_CacheStatusPopulate(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	server := NewServer(&stubCatalog{}, WithRateLimit(limiter))

	assert.Equal(t, http.StatusOK, get(t, server, "/cache/status").Code)
	assert.Equal(t, http.StatusOK, get(t, server, "/cache/status?populate=false").Code)
	assert.Equal(t, http.StatusOK, get(t, server, "/cache/status?populate=true").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, server, "/cache/status?populate=true").Code)
	assert.Equal(t, http.StatusOK, get(t, server, "/cache/status").Code, "plain status reads stay unlimited")
}
