package httpclient

import (
	"net/http"

	"golang.org/x/time/rate"
)

// rateLimitTransport delays requests so no more than limit per second leave
// the process. Waiting honours the request context.
type rateLimitTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func newRateLimitTransport(base http.RoundTripper, limit float64, burst int) *rateLimitTransport {
	return &rateLimitTransport{
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(limit), burst),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
