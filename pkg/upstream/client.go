package upstream

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/pfcatalog/pkg/config"
	"github.com/platinummonkey/pfcatalog/pkg/observability"
)

// maxBodySize caps a collection response body
const maxBodySize = 64 << 20

// Record is the raw JSON of one collection item
type Record []byte

// String returns the record JSON
func (r Record) String() string {
	return string(r)
}

// Fetcher retrieves a whole admin API collection for one environment
type Fetcher interface {
	FetchCollection(ctx context.Context, env *config.Environment, resourcePath string) ([]Record, error)
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the client logger
func WithLogger(logger *observability.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request outcomes in Prometheus
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithTimeout bounds each request; zero means no client-side timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithBaseTransport replaces the transport cloned for each environment
func WithBaseTransport(transport *http.Transport) Option {
	return func(c *Client) {
		if transport != nil {
			c.baseTransport = transport
		}
	}
}

// Client is the admin API client. It keeps one http.Client per environment
// because TLS verification is configured per environment.
type Client struct {
	logger        *observability.Logger
	metrics       *observability.Metrics
	timeout       time.Duration
	baseTransport *http.Transport

	mu      sync.Mutex
	clients map[string]*http.Client
}

var _ Fetcher = (*Client)(nil)

// NewClient creates a new admin API client
func NewClient(opts ...Option) *Client {
	c := &Client{
		logger:        observability.NopLogger(),
		baseTransport: http.DefaultTransport.(*http.Transport),
		clients:       make(map[string]*http.Client),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// httpClient returns the environment's client, creating it on first use
func (c *Client) httpClient(env *config.Environment) *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hc, ok := c.clients[env.Name]; ok {
		return hc
	}

	transport := c.baseTransport.Clone()
	if !env.TLSVerify() {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec // operator disabled verification for this environment
	}

	hc := &http.Client{
		Timeout: c.timeout,
		Transport: otelhttp.NewTransport(transport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "upstream " + r.Method + " " + strings.TrimPrefix(r.URL.Path, AdminAPIPrefix+"/")
			}),
		),
	}
	c.clients[env.Name] = hc
	return hc
}

// FetchCollection performs one GET of the resource and returns its items
func (c *Client) FetchCollection(ctx context.Context, env *config.Environment, resourcePath string) ([]Record, error) {
	start := time.Now()
	records, err := c.fetch(ctx, env, resourcePath)
	duration := time.Since(start)

	c.metrics.RecordUpstreamRequest(env.Name, resourcePath, Outcome(err), duration)

	logger := c.logger.WithFields(map[string]interface{}{
		"environment": env.Name,
		"resource":    resourcePath,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		logger.WithError(err).Debug("upstream fetch failed")
		return nil, err
	}
	logger.WithField("items", len(records)).Debug("upstream fetch completed")
	return records, nil
}

func (c *Client) fetch(ctx context.Context, env *config.Environment, resourcePath string) ([]Record, error) {
	url := env.BaseURL + AdminAPIPrefix + "/" + strings.TrimPrefix(resourcePath, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{Environment: env.Name, Resource: resourcePath, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(XSRFHeader, XSRFHeaderValue)
	if env.BasicToken != "" {
		req.Header.Set("Authorization", "Basic "+env.BasicToken)
	} else {
		req.SetBasicAuth(env.Username, env.Password)
	}

	resp, err := c.httpClient(env).Do(req)
	if err != nil {
		return nil, &TransportError{Environment: env.Name, Resource: resourcePath, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Environment: env.Name, Resource: resourcePath, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ResponseError{
			Environment: env.Name,
			Resource:    resourcePath,
			StatusCode:  resp.StatusCode,
			Body:        truncate(string(body), maxErrorBody),
		}
	}

	return parseCollection(env.Name, resourcePath, body)
}

// parseCollection extracts the items array of a collection document
func parseCollection(envName, resourcePath string, body []byte) ([]Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, &ParseError{Environment: envName, Resource: resourcePath, Reason: "response is not valid JSON"}
	}

	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, &ParseError{Environment: envName, Resource: resourcePath, Reason: "response is not a JSON object"}
	}

	items := doc.Get("items")
	if !items.Exists() {
		return nil, &ParseError{Environment: envName, Resource: resourcePath, Reason: "response has no items"}
	}
	if !items.IsArray() {
		return nil, &ParseError{Environment: envName, Resource: resourcePath, Reason: "items is not an array"}
	}

	elems := items.Array()
	records := make([]Record, 0, len(elems))
	for _, item := range elems {
		records = append(records, Record(item.Raw))
	}
	return records, nil
}
