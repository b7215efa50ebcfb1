package httpclient

import (
	"net/url"
	"strings"
)

// sensitiveParams lists query parameter substrings that are redacted from logs.
var sensitiveParams = []string{
	"api_key",
	"apikey",
	"token",
	"password",
	"auth",
	"secret",
	"key",
	"credential",
}

// sanitizeURL removes sensitive query parameters and userinfo from URLs
// before logging.
func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	safe := *u
	safe.User = nil

	if safe.RawQuery == "" {
		return safe.String()
	}

	q := u.Query()
	for param := range q {
		if isSensitiveParam(param) {
			q.Set(param, "[REDACTED]")
		}
	}
	safe.RawQuery = q.Encode()
	return safe.String()
}

// SanitizeURL is sanitizeURL for callers holding a raw URL string. Strings
// that do not parse are returned without their query.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexByte(raw, '?'); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	return sanitizeURL(u)
}

// isSensitiveParam checks if a parameter name matches the sensitive list.
// Comparison is case-insensitive.
func isSensitiveParam(param string) bool {
	lower := strings.ToLower(param)
	for _, sensitive := range sensitiveParams {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}
