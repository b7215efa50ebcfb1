package api

import (
	"net/http"
	"time"

	"github.com/tombee/flowctl/pkg/httpclient"
)

const (
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultRetryDelay is the wait before the first retry; later retries
	// double it.
	DefaultRetryDelay = 300 * time.Millisecond

	// DefaultMaxRetryDelay caps a single backoff wait.
	DefaultMaxRetryDelay = 10 * time.Second
)

// Params are query parameters. A nil value (or nil pointer) is omitted;
// zero values such as 0, false and "" are sent.
type Params map[string]any

// RequestConfig is the per-call configuration assembled from RequestOptions.
type RequestConfig struct {
	// Params are appended to the URL as a query string.
	Params Params

	// Timeout bounds each attempt. Zero uses the client default.
	Timeout time.Duration

	// Retry is the retry budget. Nil uses the method default: one retry
	// for idempotent methods, none otherwise.
	Retry *int

	// RetryDelay is the initial backoff. Zero uses the client default.
	RetryDelay time.Duration

	// Headers are merged into the outgoing request.
	Headers http.Header
}

// RequestOption configures a single request.
type RequestOption func(*RequestConfig)

// WithParams merges params into the query string.
func WithParams(params Params) RequestOption {
	return func(c *RequestConfig) {
		if c.Params == nil {
			c.Params = make(Params, len(params))
		}
		for k, v := range params {
			c.Params[k] = v
		}
	}
}

// WithParam sets a single query parameter.
func WithParam(key string, value any) RequestOption {
	return WithParams(Params{key: value})
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(c *RequestConfig) {
		c.Timeout = d
	}
}

// WithRetry sets the retry budget. Non-idempotent methods are never
// retried whatever the budget.
func WithRetry(n int) RequestOption {
	return func(c *RequestConfig) {
		c.Retry = &n
	}
}

// WithRetryDelay overrides the initial backoff.
func WithRetryDelay(d time.Duration) RequestOption {
	return func(c *RequestConfig) {
		c.RetryDelay = d
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(c *RequestConfig) {
		if c.Headers == nil {
			c.Headers = make(http.Header)
		}
		c.Headers.Set(key, value)
	}
}

// WithHeaders sets several request headers.
func WithHeaders(headers map[string]string) RequestOption {
	return func(c *RequestConfig) {
		for k, v := range headers {
			WithHeader(k, v)(c)
		}
	}
}

// defaultRetries is one retry for idempotent methods and none otherwise.
func defaultRetries(method string) int {
	if httpclient.IsIdempotent(method) {
		return 1
	}
	return 0
}

// buildConfig applies opts over the client defaults.
func (c *Client) buildConfig(method string, opts []RequestOption) RequestConfig {
	var cfg RequestConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = c.timeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = c.retryDelay
	}
	if cfg.Retry == nil {
		n := defaultRetries(method)
		if c.retries != nil {
			n = *c.retries
		}
		cfg.Retry = &n
	}
	return cfg
}
