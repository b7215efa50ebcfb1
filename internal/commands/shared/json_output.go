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
	"encoding/json"
	"io"

	pkgerrors "github.com/tombee/flowctl/pkg/errors"
)

// JSONResponse is the base envelope for all JSON output
type JSONResponse struct {
	Version string `json:"@version"`
	Command string `json:"command,omitempty"`
	Success bool   `json:"success"`
}

// JSONError is the structured form of a failed command.
type JSONError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Status     int    `json:"status,omitempty"`
	TraceID    string `json:"trace_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	ExitCode   int    `json:"exit_code"`
}

// EmitJSON writes v as indented JSON.
func EmitJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// NewJSONError converts err into its structured form.
func NewJSONError(err error) JSONError {
	out := JSONError{
		Code:       pkgerrors.CodeOf(err),
		Message:    err.Error(),
		Suggestion: suggestion(err),
		ExitCode:   ExitCode(err),
	}
	if apiErr, ok := pkgerrors.AsAPIError(err); ok {
		out.Message = apiErr.Message
		out.Status = apiErr.Status
		out.TraceID = apiErr.TraceID
		out.RequestID = apiErr.RequestID
	}
	if out.Code == "" {
		out.Code = pkgerrors.CodeUnknown
	}
	return out
}

// EmitJSONError writes err as a failed JSON response.
func EmitJSONError(w io.Writer, err error) error {
	type errorResponse struct {
		JSONResponse
		Error JSONError `json:"error"`
	}

	return EmitJSON(w, errorResponse{
		JSONResponse: JSONResponse{Version: "1.0", Success: false},
		Error:        NewJSONError(err),
	})
}
