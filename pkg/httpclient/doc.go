// Package httpclient provides the HTTP plumbing shared by the flowctl SDK
// and CLI.
//
// # Transport stack
//
// New returns an *http.Client whose transport is layered as follows:
//   - a base transport with TLS 1.2 minimum and connection pooling
//   - a logging transport that sets User-Agent, propagates the correlation
//     ID from the request context and logs sanitized URLs with durations
//   - an optional client-side rate limiter (golang.org/x/time/rate)
//
// Basic usage:
//
//	client, err := httpclient.New(httpclient.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//
// # Retry
//
// Retries are not performed by the transport. Callers that understand the
// response payload decide what is retryable and drive the loop with Attempt:
//
//	policy := httpclient.RetryPolicy{MaxRetries: 2, Delay: 300 * time.Millisecond}
//	resp, err := httpclient.Attempt(ctx, policy, http.MethodGet, func(ctx context.Context, attempt int) (*Result, error) {
//	    return fetch(ctx)
//	})
//
// Attempt only repeats idempotent methods (GET, HEAD, OPTIONS) and backs off
// exponentially between tries, stopping early when the context is done.
//
// # Security
//
// Sensitive query parameters (api_key, token, password, etc.) are redacted
// from logs. Authorization headers are never logged.
package httpclient
