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

package shared

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	pkgerrors "github.com/tombee/flowctl/pkg/errors"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitAuthRequired = 2
	ExitUsage        = 3
)

// ErrNotLoggedIn is returned by commands that need stored tokens when
// there are none.
var ErrNotLoggedIn = errors.New("not logged in")

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewUsageError creates an error for invalid arguments or flags
func NewUsageError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitUsage,
		Message: msg,
		Cause:   cause,
	}
}

// NewAuthRequiredError creates an error for commands that need a login
func NewAuthRequiredError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitAuthRequired,
		Message: msg,
		Cause:   cause,
	}
}

// ExitCode maps err to the process exit code. Expired sessions, 401s and
// missing tokens map to ExitAuthRequired, validation failures to
// ExitUsage.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, ErrNotLoggedIn) {
		return ExitAuthRequired
	}
	if apiErr, ok := pkgerrors.AsAPIError(err); ok {
		if apiErr.Code == pkgerrors.CodeTokenExpired || apiErr.Status == http.StatusUnauthorized {
			return ExitAuthRequired
		}
	}
	var validationErr *pkgerrors.ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsage
	}
	return ExitFailure
}

// HandleExitError reports err and exits with the matching code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	if GetJSON() {
		_ = EmitJSONError(os.Stdout, err)
	} else {
		PrintError(os.Stderr, err)
	}
	os.Exit(ExitCode(err))
}

// PrintError writes err and, when available, a suggestion for fixing it.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err.Error())
	var cfgErr *pkgerrors.ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Cause != nil {
		fmt.Fprintf(w, "Cause: %v\n", cfgErr.Cause)
	}
	if apiErr, ok := pkgerrors.AsAPIError(err); ok && apiErr.TraceID != "" {
		fmt.Fprintf(w, "Trace ID: %s\n", apiErr.TraceID)
	}
	if s := suggestion(err); s != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", s)
	}
}

// suggestion walks the error chain for a UserVisibleError or a
// ValidationError carrying a suggestion.
func suggestion(err error) string {
	if errors.Is(err, ErrNotLoggedIn) {
		return "Run 'flowctl auth login' to sign in."
	}
	for err != nil {
		if userErr, ok := err.(pkgerrors.UserVisibleError); ok {
			if userErr.IsUserVisible() {
				return userErr.Suggestion()
			}
			return ""
		}
		if v, ok := err.(*pkgerrors.ValidationError); ok {
			return v.Suggestion
		}
		err = errors.Unwrap(err)
	}
	return ""
}
