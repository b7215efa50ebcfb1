package api

import (
	"bytes"
	"encoding/json"

	"github.com/tombee/flowctl/internal/tracing"
	flowerrors "github.com/tombee/flowctl/pkg/errors"
)

const (
	codeOK              = "OK"
	defaultErrorMessage = "Request failed"
)

// Meta is the pagination block some list responses carry next to data.
type Meta struct {
	Total    *int `json:"total,omitempty"`
	Page     *int `json:"page,omitempty"`
	PageSize *int `json:"page_size,omitempty"`
}

// Envelope is the response wrapper used by the platform API.
type Envelope struct {
	Code         string          `json:"code"`
	Message      string          `json:"message,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Meta         *Meta           `json:"meta,omitempty"`
	TraceID      string          `json:"trace_id,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	Success      *bool           `json:"success,omitempty"`
}

// DecodeEnvelope decodes raw as an Envelope. ok is false when raw is not an
// object with a string code.
func DecodeEnvelope(raw json.RawMessage) (env *Envelope, ok bool) {
	p := parsePayload(raw)
	if _, isEnv := p.str("code"); !isEnv {
		return nil, false
	}
	env = &Envelope{}
	if err := json.Unmarshal(p.raw, env); err != nil {
		return nil, false
	}
	return env, true
}

// Unwrap returns the data member of an envelope, or raw itself when raw is
// not wrapped.
func Unwrap(raw json.RawMessage) json.RawMessage {
	return parsePayload(raw).data()
}

// payload is a parsed response body. fields is nil when the body is not a
// JSON object.
type payload struct {
	raw    json.RawMessage
	fields map[string]json.RawMessage
}

// parsePayload treats an empty or malformed body as {}.
func parsePayload(body []byte) payload {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return payload{raw: json.RawMessage("{}"), fields: map[string]json.RawMessage{}}
	}

	p := payload{raw: json.RawMessage(trimmed)}
	if trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err == nil {
			p.fields = fields
		}
	}
	return p
}

func (p payload) isNull() bool {
	return bytes.Equal(p.raw, []byte("null"))
}

// str returns the member key when it is a JSON string.
func (p payload) str(key string) (string, bool) {
	return stringMember(p.fields, key)
}

// isSuccess applies the envelope rules: a string code must be "OK";
// otherwise a boolean success member decides; otherwise the body counts
// as success.
func (p payload) isSuccess() bool {
	if p.isNull() {
		return false
	}
	if code, ok := p.str("code"); ok {
		return code == codeOK
	}
	if raw, ok := p.fields["success"]; ok {
		var success bool
		if err := json.Unmarshal(raw, &success); err == nil {
			return success
		}
	}
	return true
}

// data unwraps the envelope: data when code is present or a data member
// exists, the whole body otherwise.
func (p payload) data() json.RawMessage {
	if _, ok := p.str("code"); ok {
		if d, ok := p.fields["data"]; ok {
			return d
		}
		return json.RawMessage("null")
	}
	if d, ok := p.fields["data"]; ok {
		return d
	}
	return p.raw
}

// apiError builds the error for a failed response. Message and code are
// looked up in error_message/error_code, then message/code, then the
// nested error object.
func (p payload) apiError(status int, ids tracing.ServerIDs) *flowerrors.APIError {
	nested := objectMember(p.fields, "error")
	data := objectMember(p.fields, "data")

	message := firstNonEmpty(
		nonEmptyMember(p.fields, "error_message"),
		nonEmptyMember(p.fields, "message"),
		nonEmptyMember(nested, "message"),
	)
	if message == "" {
		message = defaultErrorMessage
	}

	code := firstNonEmpty(
		nonEmptyMember(p.fields, "error_code"),
		nonEmptyMember(p.fields, "code"),
		nonEmptyMember(nested, "code"),
	)
	if code == "" {
		code = flowerrors.CodeRequestFailed
	}

	var details json.RawMessage
	for _, m := range []map[string]json.RawMessage{p.fields, data, nested} {
		if d, ok := m["details"]; ok && !bytes.Equal(d, []byte("null")) {
			details = d
			break
		}
	}

	traceID := firstNonEmpty(nonEmptyMember(p.fields, "trace_id"), ids.TraceID)
	requestID := firstNonEmpty(nonEmptyMember(p.fields, "request_id"), ids.RequestID)

	return &flowerrors.APIError{
		Code:      code,
		Message:   message,
		Status:    status,
		Details:   details,
		TraceID:   traceID,
		RequestID: requestID,
	}
}

func stringMember(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func nonEmptyMember(fields map[string]json.RawMessage, key string) string {
	s, _ := stringMember(fields, key)
	return s
}

func objectMember(fields map[string]json.RawMessage, key string) map[string]json.RawMessage {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
