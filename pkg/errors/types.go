// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Client-side error codes. Codes returned by the backend (VALIDATION_ERROR,
// FORBIDDEN, NOT_FOUND, INTERNAL_ERROR, ...) are passed through unchanged.
const (
	CodeNetworkError  = "NETWORK_ERROR"
	CodeTimeout       = "TIMEOUT"
	CodeTokenExpired  = "TOKEN_EXPIRED"
	CodeRequestFailed = "REQUEST_FAILED"
	CodeUnknown       = "UNKNOWN_ERROR"
)

// APIError is the single error shape surfaced by the API client.
// Every non-success path of a request ends in an *APIError.
type APIError struct {
	// Code is the machine-readable error code (backend or client-side).
	Code string

	// Message is the human-readable error description.
	Message string

	// Status is the HTTP status code, 0 when no response was received.
	Status int

	// Details carries the backend's structured error details, if any.
	Details json.RawMessage

	// TraceID and RequestID correlate this error with backend logs.
	TraceID   string
	RequestID string

	// Cause is the underlying transport error, if any.
	Cause error
}

// NewAPIError creates an APIError with the given code, message and status.
func NewAPIError(code, message string, status int) *APIError {
	return &APIError{Code: code, Message: message, Status: status}
}

// NetworkError wraps a transport failure where no HTTP response was obtained.
func NetworkError(cause error) *APIError {
	msg := "network request failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &APIError{Code: CodeNetworkError, Message: msg, Status: 0, Cause: cause}
}

// TimeoutError reports a request aborted by its deadline or by cancellation.
func TimeoutError(cause error) *APIError {
	return &APIError{Code: CodeTimeout, Message: "Request timed out", Status: http.StatusRequestTimeout, Cause: cause}
}

// TokenExpiredError reports that the session could not be renewed.
func TokenExpiredError(message string) *APIError {
	if message == "" {
		message = "Session expired, please log in again"
	}
	return &APIError{Code: CodeTokenExpired, Message: message, Status: http.StatusUnauthorized}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("api error %s", e.Code)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.Status)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Message)
	if e.TraceID != "" {
		msg = fmt.Sprintf("%s (trace-id: %s)", msg, e.TraceID)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements UserVisibleError.
func (e *APIError) IsUserVisible() bool {
	return true
}

// UserMessage implements UserVisibleError.
func (e *APIError) UserMessage() string {
	return e.Message
}

// Suggestion implements UserVisibleError.
func (e *APIError) Suggestion() string {
	switch {
	case e.Code == CodeTokenExpired || e.Status == http.StatusUnauthorized:
		return "Run 'flowctl auth login' to start a new session"
	case e.Code == CodeNetworkError:
		return "Check that the API URL is reachable (flowctl config show)"
	case e.Code == CodeTimeout:
		return "Retry the request or raise the timeout with --timeout"
	case e.Status == http.StatusForbidden:
		return "Your account lacks the capability required for this operation"
	default:
		return ""
	}
}

// ErrorType implements ErrorClassifier.
func (e *APIError) ErrorType() string {
	switch {
	case e.Code == CodeNetworkError:
		return "network"
	case e.Code == CodeTimeout:
		return "timeout"
	case e.Code == CodeTokenExpired || e.Status == http.StatusUnauthorized:
		return "auth"
	case e.Status >= 500:
		return "server"
	case e.Status >= 400:
		return "client"
	default:
		return "api"
	}
}

// IsRetryable implements ErrorClassifier. It reports whether the failure is
// transient; whether a request may actually be repeated also depends on its
// method.
func (e *APIError) IsRetryable() bool {
	if e.Code == CodeNetworkError {
		return true
	}
	return e.Status >= 500 && e.Status < 600
}

// ValidationError represents user input validation failures.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ConfigError represents configuration problems.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "api.base_url")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
