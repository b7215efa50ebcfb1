// Package secrets detects and masks credentials in API payloads before
// they are printed.
package secrets

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Mask is the replacement for a masked value.
const Mask = "***"

// Masker masks secrets in strings and JSON documents. A value is secret
// when it was registered with AddSecret or when its object key matches one
// of the key patterns.
type Masker struct {
	// patterns are key suffixes that mark a secret (e.g. token, password)
	patterns []string

	// secrets is a set of known secret values to mask anywhere
	secrets map[string]struct{}
}

// NewMasker creates a masker with the default key patterns.
func NewMasker() *Masker {
	return &Masker{
		patterns: []string{
			"token",
			"secret",
			"password",
			"api_key",
			"apikey",
			"private_key",
		},
		secrets: make(map[string]struct{}),
	}
}

// AddSecret registers a value to be masked wherever it appears.
func (m *Masker) AddSecret(value string) {
	if value != "" {
		m.secrets[value] = struct{}{}
	}
}

// IsSecretKey reports whether an object key names a secret. Matching is
// case-insensitive and ignores "-" versus "_".
func (m *Masker) IsSecretKey(key string) bool {
	k := strings.ReplaceAll(strings.ToLower(key), "-", "_")
	for _, pattern := range m.patterns {
		if strings.HasSuffix(k, pattern) {
			return true
		}
	}
	return false
}

// Mask replaces all known secrets in s.
func (m *Masker) Mask(s string) string {
	for secret := range m.secrets {
		if strings.Contains(s, secret) {
			s = strings.ReplaceAll(s, secret, Mask)
		}
	}
	return s
}

// MaskValue masks secrets in a decoded JSON value. Maps and slices are
// copied, not modified.
func (m *Masker) MaskValue(v any) any {
	switch val := v.(type) {
	case string:
		return m.Mask(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if s, ok := item.(string); ok && s != "" && m.IsSecretKey(k) {
				out[k] = Mask
				continue
			}
			out[k] = m.MaskValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = m.MaskValue(item)
		}
		return out
	default:
		return val
	}
}

// MaskJSON masks secrets in a JSON document. Input that is not JSON is
// masked as a plain string.
func (m *Masker) MaskJSON(raw []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return []byte(m.Mask(string(raw)))
	}

	out, err := json.Marshal(m.MaskValue(data))
	if err != nil {
		return []byte(m.Mask(string(raw)))
	}
	return out
}
