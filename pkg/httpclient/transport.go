package httpclient

import (
	"log/slog"
	"net/http"
	"time"

	flowlog "github.com/tombee/flowctl/internal/log"
	"github.com/tombee/flowctl/internal/tracing"
)

// loggingTransport wraps an http.RoundTripper to add:
// - Request/response logging with sanitized URLs
// - User-Agent header injection
// - Correlation ID and W3C trace context propagation
// - Duration tracking
type loggingTransport struct {
	base      http.RoundTripper
	userAgent string
	logger    *slog.Logger
}

func newLoggingTransport(base http.RoundTripper, userAgent string, logger *slog.Logger) *loggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = flowlog.Discard()
	}

	return &loggingTransport{
		base:      base,
		userAgent: userAgent,
		logger:    logger,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	// RoundTrippers must not mutate the caller's request.
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	tracing.InjectIntoRequest(req.Context(), req)
	tracing.InjectHTTPHeaders(req.Context(), req)

	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()

	logger := t.logger
	if id := tracing.FromContextOrEmpty(req.Context()); id.IsValid() {
		logger = flowlog.WithCorrelationID(logger, id.String())
	}
	logURL := sanitizeURL(req.URL)

	if err != nil {
		logger.Debug("http round trip failed",
			flowlog.MethodKey, req.Method,
			flowlog.URLKey, logURL,
			flowlog.DurationKey, duration,
			flowlog.Error(err),
		)
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 500 {
		level = slog.LevelWarn
	}
	logger.Log(req.Context(), level, "http request",
		flowlog.MethodKey, req.Method,
		flowlog.URLKey, logURL,
		flowlog.StatusKey, resp.StatusCode,
		flowlog.DurationKey, duration,
	)
	return resp, nil
}
