package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	flowlog "github.com/tombee/flowctl/internal/log"
	"github.com/tombee/flowctl/internal/tracing"
	flowerrors "github.com/tombee/flowctl/pkg/errors"
	"github.com/tombee/flowctl/pkg/httpclient"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// Get issues a GET and decodes the unwrapped data into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post issues a POST with body and decodes the unwrapped data into out.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

// Put issues a PUT with body and decodes the unwrapped data into out.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

// Patch issues a PATCH with body and decodes the unwrapped data into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPatch, path, body, out, opts...)
}

// Delete issues a DELETE and decodes the unwrapped data into out.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do performs one logical request and decodes the envelope's data into
// out. out may be nil to discard the result, or a *json.RawMessage to
// receive it undecoded.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	raw, err := c.RequestRaw(ctx, method, path, body, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	data := Unwrap(raw)
	if rm, ok := out.(*json.RawMessage); ok {
		*rm = append((*rm)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// RequestRaw performs one logical request and returns the full successful
// body, envelope included. A body that is not JSON is returned as {}.
func (c *Client) RequestRaw(ctx context.Context, method, path string, body any, opts ...RequestOption) (json.RawMessage, error) {
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}
	cfg := c.buildConfig(method, opts)
	target := c.URL(path, cfg.Params)

	var encoded []byte
	if body != nil {
		var err error
		if encoded, err = json.Marshal(body); err != nil {
			return nil, &flowerrors.ValidationError{
				Field:   "body",
				Message: fmt.Sprintf("cannot encode request body as JSON: %v", err),
			}
		}
	}

	ctx, corrID := tracing.EnsureContext(ctx)
	ctx, span := c.tracer.Start(ctx, "api "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", httpclient.SanitizeURL(target)),
			attribute.String("flowctl.correlation_id", corrID.String()),
		),
	)
	defer span.End()

	logger := c.logger.With(flowlog.MethodKey, method, flowlog.URLKey, httpclient.SanitizeURL(target))
	req := &preparedRequest{
		method:  method,
		url:     target,
		body:    encoded,
		headers: cfg.Headers,
		timeout: cfg.Timeout,
	}

	policy := httpclient.RetryPolicy{
		MaxRetries: *cfg.Retry,
		Delay:      cfg.RetryDelay,
		MaxDelay:   c.maxRetryDelay,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.metrics.recordRetry(method)
			span.AddEvent("retry", trace.WithAttributes(
				attribute.Int("attempt", attempt),
				attribute.String("error.code", flowerrors.CodeOf(err)),
			))
			logger.Info("retrying api request",
				flowlog.AttemptKey, attempt,
				flowlog.CodeKey, flowerrors.CodeOf(err),
				"delay_ms", delay.Milliseconds(),
			)
		},
	}

	start := time.Now()
	resp, err := httpclient.Attempt(ctx, policy, method, func(ctx context.Context, attempt int) (*response, error) {
		return c.perform(ctx, req)
	})
	elapsed := time.Since(start)

	if err != nil {
		apiErr := normalizeError(err)
		c.metrics.recordRequest(method, apiErr.Code, apiErr.Status, elapsed)
		span.SetAttributes(
			attribute.Int("http.response.status_code", apiErr.Status),
			attribute.String("error.code", apiErr.Code),
		)
		span.SetStatus(codes.Error, apiErr.Message)

		level := slog.LevelWarn
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			level = slog.LevelDebug
		}
		logger.Log(ctx, level, "api request failed",
			flowlog.StatusKey, apiErr.Status,
			flowlog.CodeKey, apiErr.Code,
			flowlog.TraceIDKey, apiErr.TraceID,
			flowlog.RequestIDKey, apiErr.RequestID,
			flowlog.DurationKey, elapsed.Milliseconds(),
		)
		return nil, apiErr
	}

	raw := resp.payload.raw
	c.metrics.recordRequest(method, codeOK, resp.status, elapsed)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.status))
	span.SetStatus(codes.Ok, "")
	logger.Debug("api request complete", flowlog.DurationKey, elapsed.Milliseconds())
	flowlog.Trace(ctx, logger, "api response body", slog.String("body", string(raw)))
	return raw, nil
}

// preparedRequest is everything needed to send one attempt.
type preparedRequest struct {
	method  string
	url     string
	body    []byte
	headers http.Header
	timeout time.Duration
}

// response is a fully read HTTP response.
type response struct {
	status  int
	payload payload
	ids     tracing.ServerIDs

	// sentToken is the access token the request carried, "" when none.
	sentToken string
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300 && r.payload.isSuccess()
}

func (r *response) err() *flowerrors.APIError {
	return r.payload.apiError(r.status, r.ids)
}

// perform runs one attempt, including the refresh-and-retry on 401.
func (c *Client) perform(ctx context.Context, req *preparedRequest) (*response, error) {
	resp, err := c.exchange(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.status == http.StatusUnauthorized && c.tokens.RefreshToken(ctx) != "" {
		if err := c.refreshIfStale(ctx, resp.sentToken); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, flowerrors.TimeoutError(ctxErr)
			}
			expired := flowerrors.TokenExpiredError("")
			expired.Cause = err
			expired.TraceID, expired.RequestID = resp.ids.TraceID, resp.ids.RequestID
			return nil, expired
		}

		resp, err = c.exchange(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.status == http.StatusUnauthorized {
			expired := flowerrors.TokenExpiredError("")
			expired.Cause = resp.err()
			expired.TraceID, expired.RequestID = resp.ids.TraceID, resp.ids.RequestID
			return nil, expired
		}
	}

	if !resp.ok() {
		return nil, resp.err()
	}
	return resp, nil
}

// exchange sends req once under its own timeout and reads the response.
func (c *Client) exchange(ctx context.Context, req *preparedRequest) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, req.timeout)
	defer cancel()

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return nil, flowerrors.NewAPIError(flowerrors.CodeRequestFailed, fmt.Sprintf("invalid request: %v", err), 0)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range req.headers {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	token := c.tokens.AccessToken(ctx)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	} else {
		httpReq.Header.Del("Authorization")
	}

	resp, err := c.roundTrip(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	resp.sentToken = token
	return resp, nil
}

// roundTrip sends httpReq and reads the whole body. Transport failures map
// to TIMEOUT when ctx ended and NETWORK_ERROR otherwise.
func (c *Client) roundTrip(ctx context.Context, httpReq *http.Request) (*response, error) {
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(ctx, err)
	}

	return &response{
		status:  httpResp.StatusCode,
		payload: parsePayload(data),
		ids:     tracing.ExtractFromResponse(httpResp),
	}, nil
}

func transportError(ctx context.Context, err error) *flowerrors.APIError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return flowerrors.TimeoutError(ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return flowerrors.TimeoutError(err)
	}
	return flowerrors.NetworkError(err)
}

// normalizeError guarantees every failure surfaces as an *APIError.
func normalizeError(err error) *flowerrors.APIError {
	if apiErr, ok := flowerrors.AsAPIError(err); ok {
		return apiErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return flowerrors.TimeoutError(err)
	}
	return flowerrors.NetworkError(err)
}
