package api

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"
)

var absoluteURL = regexp.MustCompile(`(?i)^https?://`)

// resolveURL joins endpoint to base with exactly one slash. Absolute URLs
// and endpoints that already start with base are returned as is.
func resolveURL(base, endpoint string) string {
	trimmed := strings.TrimSpace(endpoint)
	if absoluteURL.MatchString(trimmed) {
		return trimmed
	}

	base = strings.TrimSuffix(base, "/")
	if base != "" && strings.HasPrefix(trimmed, base) {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "/") {
		return base + trimmed
	}
	return base + "/" + trimmed
}

// appendQuery adds the encoded params to rawURL, joining with "&" when
// rawURL already carries a query.
func appendQuery(rawURL string, params Params) string {
	qs := encodeParams(params)
	if qs == "" {
		return rawURL
	}
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + qs
	}
	return rawURL + "?" + qs
}

// encodeParams renders params as a query string sorted by key. Nil values
// and nil pointers are skipped. Slices add one pair per element.
func encodeParams(params Params) string {
	if len(params) == 0 {
		return ""
	}

	values := url.Values{}
	for key, value := range params {
		for _, s := range paramStrings(value) {
			values.Add(key, s)
		}
	}
	return values.Encode()
}

func paramStrings(value any) []string {
	rv := reflect.ValueOf(value)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, paramStrings(rv.Index(i).Interface())...)
		}
		return out
	case reflect.Map, reflect.Func, reflect.Chan:
		return nil
	}
	return []string{scalarString(rv.Interface())}
}

func scalarString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
