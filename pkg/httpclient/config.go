package httpclient

import (
	"fmt"
	"log/slog"
	"time"
)

// Config holds configuration for the HTTP client.
type Config struct {
	// Timeout bounds the whole exchange including reading the body.
	// Default: 0 (no client-wide limit; callers set per-request deadlines
	// on the context). Must be >= 0.
	Timeout time.Duration

	// UserAgent is the User-Agent header value.
	// Required. Must be non-empty.
	UserAgent string

	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit float64

	// RateBurst is the token bucket size used with RateLimit.
	// Default: 1. Must be >= 1 when RateLimit > 0.
	RateBurst int

	// Logger receives request logs. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent: "flowctl/dev",
		RateBurst: 1,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user_agent is required and must be non-empty")
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be >= 0, got %v", c.RateLimit)
	}

	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be >= 1 when rate_limit is set, got %d", c.RateBurst)
	}

	return nil
}
