package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	flowlog "github.com/tombee/flowctl/internal/log"
	"github.com/tombee/flowctl/pkg/auth"
	"github.com/tombee/flowctl/pkg/httpclient"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8080/api/v1"

// RefreshPath is the endpoint, relative to the base URL, that exchanges a
// refresh token for a new token pair.
const RefreshPath = "/auth/refresh"

const tracerName = "github.com/tombee/flowctl/pkg/api"

// Client issues requests against the platform API.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *auth.TokenStore
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer

	timeout       time.Duration
	retries       *int
	retryDelay    time.Duration
	maxRetryDelay time.Duration

	refreshGroup singleflight.Group
}

// New creates a Client for baseURL (DefaultBaseURL when empty).
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: must be an absolute http(s) URL", baseURL)
	}

	c := &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		logger:        flowlog.Discard(),
		timeout:       DefaultTimeout,
		retryDelay:    DefaultRetryDelay,
		maxRetryDelay: DefaultMaxRetryDelay,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.httpClient == nil {
		cfg := httpclient.DefaultConfig()
		cfg.Logger = c.logger
		hc, err := httpclient.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create http client: %w", err)
		}
		c.httpClient = hc
	}
	if c.tokens == nil {
		c.tokens = auth.NewTokenStore(auth.WithLogger(c.logger))
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}

	return c, nil
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets the HTTP client used for every exchange.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		if client == nil {
			return fmt.Errorf("http client is nil")
		}
		c.httpClient = client
		return nil
	}
}

// WithTokenStore sets the token store. Default: an in-memory store.
func WithTokenStore(store *auth.TokenStore) Option {
	return func(c *Client) error {
		if store == nil {
			return fmt.Errorf("token store is nil")
		}
		c.tokens = store
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = flowlog.WithComponent(logger, "api")
		}
		return nil
	}
}

// WithMetrics registers request metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) error {
		c.metrics = NewMetrics(reg)
		return nil
	}
}

// WithTracerProvider sets the provider spans are created from.
// Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) error {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
		return nil
	}
}

// WithDefaultTimeout sets the per-attempt timeout used when a request does
// not set one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be > 0, got %v", d)
		}
		c.timeout = d
		return nil
	}
}

// WithDefaultRetries overrides the per-method retry count (one retry for
// idempotent methods, none otherwise) for requests that do not set one.
func WithDefaultRetries(n int) Option {
	return func(c *Client) error {
		if n < 0 {
			return fmt.Errorf("retries must be >= 0, got %d", n)
		}
		c.retries = &n
		return nil
	}
}

// WithDefaultRetryDelay sets the initial backoff used when a request does
// not set one.
func WithDefaultRetryDelay(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("retry delay must be >= 0, got %v", d)
		}
		c.retryDelay = d
		return nil
	}
}

// WithMaxRetryDelay caps a single backoff wait.
func WithMaxRetryDelay(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("max retry delay must be > 0, got %v", d)
		}
		c.maxRetryDelay = d
		return nil
	}
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Tokens returns the client's token store.
func (c *Client) Tokens() *auth.TokenStore {
	return c.tokens
}

// URL resolves endpoint against the base URL and appends params.
func (c *Client) URL(endpoint string, params Params) string {
	return appendQuery(resolveURL(c.baseURL, endpoint), params)
}
