package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/flowctl/pkg/auth"
	flowerrors "github.com/tombee/flowctl/pkg/errors"
	"github.com/tombee/flowctl/pkg/httpclient"
)

// newTestClient starts server with handler and returns a client pointed at
// it with fast retry delays.
func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *auth.TokenStore) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return newClientFor(t, server.URL+"/api/v1", opts...)
}

func newClientFor(t *testing.T, baseURL string, opts ...Option) (*Client, *auth.TokenStore) {
	t.Helper()

	tokens := auth.NewTokenStore()
	hc := &http.Client{Transport: httpclient.Wrap(http.DefaultTransport, httpclient.DefaultConfig())}
	all := append([]Option{
		WithHTTPClient(hc),
		WithTokenStore(tokens),
		WithDefaultRetryDelay(time.Millisecond),
	}, opts...)

	client, err := New(baseURL, all...)
	require.NoError(t, err)
	return client, tokens
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func requireAPIError(t *testing.T, err error, code string, status int) *flowerrors.APIError {
	t.Helper()
	apiErr, ok := flowerrors.AsAPIError(err)
	require.True(t, ok, "expected *APIError, got %T: %v", err, err)
	assert.Equal(t, code, apiErr.Code)
	assert.Equal(t, status, apiErr.Status)
	return apiErr
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, base := range []string{"localhost:8080", "ftp://host/x", "http://"} {
		_, err := New(base)
		assert.Error(t, err, base)
	}

	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestClient_NoAuthorizationWithoutToken(t *testing.T) {
	var auths []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		_, present := r.Header["Authorization"]
		assert.False(t, present)
		writeJSON(w, http.StatusOK, `{"code":"OK","data":{}}`)
	})

	require.NoError(t, client.Get(context.Background(), "/me", nil))
	assert.Equal(t, []string{""}, auths)
}

func TestClient_BearerToken(t *testing.T) {
	var got string
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		writeJSON(w, http.StatusOK, `{"code":"OK","data":{}}`)
	})
	require.NoError(t, tokens.Set(context.Background(), "tok-123", "ref-456"))

	require.NoError(t, client.Get(context.Background(), "/me", nil))
	assert.Equal(t, "Bearer tok-123", got)
}

func TestClient_CallerHeadersMerged(t *testing.T) {
	var got http.Header
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeJSON(w, http.StatusOK, `{"code":"OK","data":null}`)
	})

	err := client.Get(context.Background(), "/x", nil,
		WithHeader("X-Workspace-ID", "ws_1"),
		WithHeaders(map[string]string{"Accept-Language": "en"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "ws_1", got.Get("X-Workspace-ID"))
	assert.Equal(t, "en", got.Get("Accept-Language"))
	assert.NotEmpty(t, got.Get("X-Correlation-ID"))
	assert.NotEmpty(t, got.Get("User-Agent"))
}

func TestClient_ParamsSkipUndefined(t *testing.T) {
	var query string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		writeJSON(w, http.StatusOK, `{"code":"OK","data":[]}`)
	})

	var nilStr *string
	one := 1
	err := client.Get(context.Background(), "/admin/users", nil, WithParams(Params{
		"a":      1,
		"b":      nil,
		"c":      nilStr,
		"zero":   0,
		"off":    false,
		"empty":  "",
		"ptr":    &one,
		"status": []string{"active", "banned"},
	}))
	require.NoError(t, err)

	assert.Contains(t, query, "a=1")
	assert.NotContains(t, query, "b=")
	assert.NotContains(t, query, "c=")
	assert.Contains(t, query, "zero=0")
	assert.Contains(t, query, "off=false")
	assert.Contains(t, query, "empty=")
	assert.Contains(t, query, "ptr=1")
	assert.Contains(t, query, "status=active&status=banned")
}

func TestClient_RefreshAndRetry(t *testing.T) {
	var calls []string
	var mu sync.Mutex
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path+" "+r.Header.Get("Authorization"))
		mu.Unlock()

		switch {
		case r.URL.Path == "/api/v1/auth/refresh":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "old-refresh", body["refresh_token"])
			writeJSON(w, http.StatusOK, `{"code":"OK","data":{"access_token":"new-access","refresh_token":"new-refresh"}}`)
		case r.Header.Get("Authorization") == "Bearer old-access":
			writeJSON(w, http.StatusUnauthorized, `{"code":"UNAUTHORIZED","message":"expired"}`)
		default:
			writeJSON(w, http.StatusOK, `{"code":"OK","data":{"id":"u1"}}`)
		}
	})
	ctx := context.Background()
	require.NoError(t, tokens.Set(ctx, "old-access", "old-refresh"))

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, client.Get(ctx, "/me", &out))

	assert.Equal(t, "u1", out.ID)
	assert.Equal(t, []string{
		"GET /api/v1/me Bearer old-access",
		"POST /api/v1/auth/refresh ",
		"GET /api/v1/me Bearer new-access",
	}, calls)
	assert.Equal(t, "new-access", tokens.AccessToken(ctx))
	assert.Equal(t, "new-refresh", tokens.RefreshToken(ctx))
}

func TestClient_RefreshFailureClearsTokens(t *testing.T) {
	tests := []struct {
		name    string
		refresh func(w http.ResponseWriter)
	}{
		{"http error", func(w http.ResponseWriter) {
			writeJSON(w, http.StatusUnauthorized, `{"code":"INVALID_REFRESH_TOKEN"}`)
		}},
		{"envelope error", func(w http.ResponseWriter) {
			writeJSON(w, http.StatusOK, `{"code":"INVALID_REFRESH_TOKEN","message":"nope"}`)
		}},
		{"missing data", func(w http.ResponseWriter) {
			writeJSON(w, http.StatusOK, `{"code":"OK"}`)
		}},
		{"missing tokens", func(w http.ResponseWriter) {
			writeJSON(w, http.StatusOK, `{"code":"OK","data":{"access_token":""}}`)
		}},
		{"not json", func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, "<html>")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n int32
			client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&n, 1)
				if r.URL.Path == "/api/v1/auth/refresh" {
					tt.refresh(w)
					return
				}
				writeJSON(w, http.StatusUnauthorized, `{"code":"UNAUTHORIZED"}`)
			})
			ctx := context.Background()
			require.NoError(t, tokens.Set(ctx, "a", "r"))

			err := client.Get(ctx, "/me", nil)
			requireAPIError(t, err, flowerrors.CodeTokenExpired, http.StatusUnauthorized)
			assert.Equal(t, int32(2), atomic.LoadInt32(&n))
			assert.Equal(t, "", tokens.AccessToken(ctx))
			assert.Equal(t, "", tokens.RefreshToken(ctx))
		})
	}
}

func TestClient_SecondUnauthorizedKeepsNewTokens(t *testing.T) {
	var n int32
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&n, 1)
		if r.URL.Path == "/api/v1/auth/refresh" {
			writeJSON(w, http.StatusOK, `{"code":"OK","data":{"access_token":"A2","refresh_token":"R2"}}`)
			return
		}
		writeJSON(w, http.StatusUnauthorized, `{"code":"UNAUTHORIZED","trace_id":"t-9"}`)
	})
	ctx := context.Background()
	require.NoError(t, tokens.Set(ctx, "A1", "R1"))

	err := client.Get(ctx, "/me", nil, WithRetry(3))
	apiErr := requireAPIError(t, err, flowerrors.CodeTokenExpired, http.StatusUnauthorized)
	assert.NotEmpty(t, apiErr.Message)
	assert.Equal(t, int32(3), atomic.LoadInt32(&n))
	assert.Equal(t, "A2", tokens.AccessToken(ctx))
	assert.Equal(t, "R2", tokens.RefreshToken(ctx))
}

func TestClient_UnauthorizedWithoutRefreshToken(t *testing.T) {
	var n int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&n, 1)
		writeJSON(w, http.StatusUnauthorized, `{"code":"UNAUTHORIZED","message":"login required"}`)
	})

	err := client.Get(context.Background(), "/me", nil)
	apiErr := requireAPIError(t, err, "UNAUTHORIZED", http.StatusUnauthorized)
	assert.Equal(t, "login required", apiErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&n))
}

func TestClient_ConcurrentRefreshIsCoalesced(t *testing.T) {
	var refreshes int32
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/refresh" {
			atomic.AddInt32(&refreshes, 1)
			time.Sleep(50 * time.Millisecond)
			writeJSON(w, http.StatusOK, `{"code":"OK","data":{"access_token":"fresh","refresh_token":"fresh-r"}}`)
			return
		}
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, `{"code":"UNAUTHORIZED"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"code":"OK","data":{}}`)
	})
	ctx := context.Background()
	require.NoError(t, tokens.Set(ctx, "stale", "stale-r"))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- client.Get(ctx, "/me", nil)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
}

func TestClient_RetriesIdempotentOn5xx(t *testing.T) {
	var n int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) == 1 {
			writeJSON(w, http.StatusInternalServerError, `{"code":"INTERNAL_ERROR"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"code":"OK","data":{"ok":true}}`)
	})

	var out map[string]bool
	require.NoError(t, client.Get(context.Background(), "/health", &out, WithRetry(1)))
	assert.True(t, out["ok"])
	assert.Equal(t, int32(2), atomic.LoadInt32(&n))
}

func TestClient_DefaultRetryBudget(t *testing.T) {
	var n int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&n, 1)
		writeJSON(w, http.StatusBadGateway, `{"code":"BAD_GATEWAY"}`)
	})

	err := client.Get(context.Background(), "/health", nil)
	requireAPIError(t, err, "BAD_GATEWAY", http.StatusBadGateway)
	assert.Equal(t, int32(2), atomic.LoadInt32(&n), "GET defaults to one retry")

	atomic.StoreInt32(&n, 0)
	err = client.Get(context.Background(), "/health", nil, WithRetry(3))
	requireAPIError(t, err, "BAD_GATEWAY", http.StatusBadGateway)
	assert.Equal(t, int32(4), atomic.LoadInt32(&n))
}

func TestClient_DefaultRetriesOption(t *testing.T) {
	var n int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&n, 1)
		writeJSON(w, http.StatusServiceUnavailable, `{"code":"UNAVAILABLE"}`)
	}, WithDefaultRetries(0))

	err := client.Get(context.Background(), "/health", nil)
	requireAPIError(t, err, "UNAVAILABLE", http.StatusServiceUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&n))

	atomic.StoreInt32(&n, 0)
	err = client.Get(context.Background(), "/health", nil, WithRetry(2))
	requireAPIError(t, err, "UNAVAILABLE", http.StatusServiceUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&n), "per-request retry wins over the client default")

	_, err = New(DefaultBaseURL, WithDefaultRetries(-1))
	assert.Error(t, err)
}

func TestClient_NonIdempotentNeverRetried(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			var n int32
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&n, 1)
				writeJSON(w, http.StatusInternalServerError, `{"code":"INTERNAL_ERROR","message":"boom"}`)
			})

			err := client.Do(context.Background(), method, "/things", map[string]string{"a": "b"}, nil, WithRetry(5))
			requireAPIError(t, err, "INTERNAL_ERROR", http.StatusInternalServerError)
			assert.Equal(t, int32(1), atomic.LoadInt32(&n))
		})
	}
}

func TestClient_ClientErrorsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusTooManyRequests} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var n int32
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&n, 1)
				writeJSON(w, status, `{"code":"NOPE"}`)
			})

			err := client.Get(context.Background(), "/x", nil, WithRetry(3))
			requireAPIError(t, err, "NOPE", status)
			assert.Equal(t, int32(1), atomic.LoadInt32(&n))
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := server.URL
	server.Close()

	client, _ := newClientFor(t, base)
	err := client.Get(context.Background(), "/x", nil, WithRetry(2))
	apiErr := requireAPIError(t, err, flowerrors.CodeNetworkError, 0)
	assert.NotNil(t, apiErr.Cause)
}

func TestClient_NetworkErrorRetriedForGet(t *testing.T) {
	var n int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) == 1 {
			// Drop the connection without a response.
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
				}
			}
			return
		}
		writeJSON(w, http.StatusOK, `{"code":"OK","data":{}}`)
	}))
	defer server.Close()

	client, _ := newClientFor(t, server.URL)
	require.NoError(t, client.Get(context.Background(), "/x", nil, WithRetry(1)))
	assert.Equal(t, int32(2), atomic.LoadInt32(&n))
}

func TestClient_Timeout(t *testing.T) {
	var n int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&n, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	start := time.Now()
	err := client.Get(context.Background(), "/slow", nil, WithTimeout(100*time.Millisecond), WithRetry(3))
	requireAPIError(t, err, flowerrors.CodeTimeout, http.StatusRequestTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&n), "timeouts are not retried")
}

func TestClient_CancelledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"code":"OK"}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := client.Get(ctx, "/x", nil)
	requireAPIError(t, err, flowerrors.CodeTimeout, http.StatusRequestTimeout)
}

func TestClient_ApplicationErrorInside200(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{
			"code": "VALIDATION_ERROR",
			"message": "email is invalid",
			"details": {"field": "email"},
			"trace_id": "trace-1",
			"request_id": "req-1"
		}`)
	})

	err := client.Post(context.Background(), "/users", map[string]string{"email": "x"}, nil)
	apiErr := requireAPIError(t, err, "VALIDATION_ERROR", http.StatusOK)
	assert.Equal(t, "email is invalid", apiErr.Message)
	assert.JSONEq(t, `{"field":"email"}`, string(apiErr.Details))
	assert.Equal(t, "trace-1", apiErr.TraceID)
	assert.Equal(t, "req-1", apiErr.RequestID)
}

func TestClient_ErrorFieldPrecedence(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantMessage string
	}{
		{
			name:        "error_code beats code",
			status:      http.StatusBadRequest,
			body:        `{"code":"BAD","error_code":"SPECIFIC","message":"m","error_message":"em"}`,
			wantCode:    "SPECIFIC",
			wantMessage: "em",
		},
		{
			name:        "nested error object",
			status:      http.StatusConflict,
			body:        `{"error":{"code":"CONFLICT","message":"already exists"}}`,
			wantCode:    "CONFLICT",
			wantMessage: "already exists",
		},
		{
			name:        "empty body",
			status:      http.StatusServiceUnavailable,
			body:        ``,
			wantCode:    flowerrors.CodeRequestFailed,
			wantMessage: "Request failed",
		},
		{
			name:        "success false",
			status:      http.StatusOK,
			body:        `{"success":false,"message":"not allowed"}`,
			wantCode:    flowerrors.CodeRequestFailed,
			wantMessage: "not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			err := client.Post(context.Background(), "/x", nil, nil)
			apiErr := requireAPIError(t, err, tt.wantCode, tt.status)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
		})
	}
}

func TestClient_TraceIDFromHeaders(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Trace-ID", "hdr-trace")
		w.Header().Set("X-Request-ID", "hdr-req")
		writeJSON(w, http.StatusNotFound, `{"code":"NOT_FOUND"}`)
	})

	err := client.Get(context.Background(), "/x", nil)
	apiErr := requireAPIError(t, err, "NOT_FOUND", http.StatusNotFound)
	assert.Equal(t, "hdr-trace", apiErr.TraceID)
	assert.Equal(t, "hdr-req", apiErr.RequestID)
}

func TestClient_Unwrap(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"envelope", `{"code":"OK","message":"ok","data":{"id":1}}`, `{"id":1}`},
		{"data without code", `{"data":{"id":2},"success":true}`, `{"id":2}`},
		{"bare object", `{"id":3}`, `{"id":3}`},
		{"bare array", `[1,2]`, `[1,2]`},
		{"not json", `<html>`, `{}`},
		{"envelope without data", `{"code":"OK"}`, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = io.WriteString(w, tt.body)
			})

			var out json.RawMessage
			require.NoError(t, client.Get(context.Background(), "/x", &out))
			assert.JSONEq(t, tt.want, string(out))
		})
	}
}

func TestClient_RequestRawKeepsEnvelope(t *testing.T) {
	body := `{"code":"OK","data":[{"id":1}],"meta":{"total":10}}`
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	})

	raw, err := client.RequestRaw(context.Background(), "get", "/x", nil)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(raw))
}

func TestClient_BodyEncoding(t *testing.T) {
	var gotBody string
	var gotMethod string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotMethod = r.Method
		writeJSON(w, http.StatusOK, `{"code":"OK","data":{"updated":true}}`)
	})

	var out struct {
		Updated bool `json:"updated"`
	}
	err := client.Patch(context.Background(), "/admin/users/u1/status",
		map[string]string{"status": "banned", "reason": "spam"}, &out)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.JSONEq(t, `{"status":"banned","reason":"spam"}`, gotBody)
	assert.True(t, out.Updated)

	require.NoError(t, client.Delete(context.Background(), "/x", nil))
	assert.Equal(t, "", gotBody)

	err = client.Post(context.Background(), "/x", map[string]any{"bad": make(chan int)}, nil)
	var verr *flowerrors.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestClient_DecodeError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"code":"OK","data":"a string"}`)
	})

	var out struct{ ID int }
	err := client.Get(context.Background(), "/x", &out)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "decode GET /x response"))
}
