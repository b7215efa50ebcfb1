package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// New creates a new HTTP client with the given configuration.
// The client includes:
//   - Request logging with sanitized URLs
//   - User-Agent header injection
//   - Correlation ID propagation
//   - Optional client-side rate limiting
//   - TLS 1.2 minimum, TLS 1.3 preferred
//
// Returns an error if the configuration is invalid.
func New(cfg Config) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		},

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: Wrap(baseTransport, cfg),
		Timeout:   cfg.Timeout,
	}, nil
}

// Wrap layers the logging and rate-limit transports over base. It is used
// by New and by callers that bring their own transport, such as tests that
// point at an httptest server.
func Wrap(base http.RoundTripper, cfg Config) http.RoundTripper {
	var rt http.RoundTripper = newLoggingTransport(base, cfg.UserAgent, cfg.Logger)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		rt = newRateLimitTransport(rt, cfg.RateLimit, burst)
	}
	return rt
}
