package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// List is a page of items in the canonical shape.
type List[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NormalizeList converts any of the list response shapes the platform
// returns into a List. Shapes are tried in order:
//
//  1. envelope whose data is {items, total?, page?, page_size?}
//  2. envelope whose data is a bare array, paging from meta
//  3. top-level {items, total?, page?, page_size?}
//  4. top-level bare array
//
// Anything else yields an empty list. page and pageSize fill in whatever
// the response omits.
func NormalizeList[T any](raw json.RawMessage, page, pageSize int) (List[T], error) {
	p := parsePayload(raw)

	if _, isEnvelope := p.str("code"); isEnvelope {
		data := p.fields["data"]
		meta := objectMember(p.fields, "meta")

		if obj := objectMember(p.fields, "data"); obj != nil && isArray(obj["items"]) {
			items, err := decodeItems[T](obj["items"])
			if err != nil {
				return List[T]{}, err
			}
			return List[T]{
				Items:    items,
				Total:    numberOr(obj, "total", truthyOr(meta, "total", len(items))),
				Page:     numberOr(obj, "page", truthyOr(meta, "page", page)),
				PageSize: numberOr(obj, "page_size", truthyOr(meta, "page_size", pageSize)),
			}, nil
		}

		if isArray(data) {
			items, err := decodeItems[T](data)
			if err != nil {
				return List[T]{}, err
			}
			return List[T]{
				Items:    items,
				Total:    numberOr(meta, "total", len(items)),
				Page:     numberOr(meta, "page", page),
				PageSize: numberOr(meta, "page_size", pageSize),
			}, nil
		}
	}

	if p.fields != nil && isArray(p.fields["items"]) {
		items, err := decodeItems[T](p.fields["items"])
		if err != nil {
			return List[T]{}, err
		}
		return List[T]{
			Items:    items,
			Total:    numberOr(p.fields, "total", len(items)),
			Page:     numberOr(p.fields, "page", page),
			PageSize: numberOr(p.fields, "page_size", pageSize),
		}, nil
	}

	if isArray(p.raw) {
		items, err := decodeItems[T](p.raw)
		if err != nil {
			return List[T]{}, err
		}
		return List[T]{Items: items, Total: len(items), Page: page, PageSize: pageSize}, nil
	}

	return List[T]{Items: []T{}, Total: 0, Page: page, PageSize: pageSize}, nil
}

// GetList issues a GET for path and normalizes the result. The fallback
// page and page size are taken from the "page" and "page_size" params,
// defaulting to 1 and 20.
func GetList[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (List[T], error) {
	cfg := RequestConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	page := intParam(cfg.Params, "page", 1)
	pageSize := intParam(cfg.Params, "page_size", 20)

	raw, err := c.RequestRaw(ctx, http.MethodGet, path, nil, opts...)
	if err != nil {
		return List[T]{}, err
	}
	return NormalizeList[T](raw, page, pageSize)
}

func decodeItems[T any](raw json.RawMessage) ([]T, error) {
	items := []T{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode list items: %w", err)
	}
	return items, nil
}

func isArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

// numberOr returns the numeric member key, or fallback when it is absent
// or not a number.
func numberOr(fields map[string]json.RawMessage, key string, fallback int) int {
	raw, ok := fields[key]
	if !ok || string(bytes.TrimSpace(raw)) == "null" {
		return fallback
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return fallback
	}
	return int(n)
}

// truthyOr is numberOr that also falls back when the member is zero.
func truthyOr(fields map[string]json.RawMessage, key string, fallback int) int {
	if n := numberOr(fields, key, 0); n != 0 {
		return n
	}
	return fallback
}

func intParam(params Params, key string, fallback int) int {
	values := paramStrings(params[key])
	if len(values) == 0 {
		return fallback
	}
	var n int
	if _, err := fmt.Sscan(values[0], &n); err != nil {
		return fallback
	}
	return n
}
