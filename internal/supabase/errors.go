package supabase

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// Error is an error response from the hosted backend.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Hint       string `json:"hint,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// codeInvalidText is the Postgres error raised when a value cannot be cast to
// the column type, e.g. a malformed uuid.
const codeInvalidText = "22P02"

// IsInvalidText reports whether the backend rejected a filter value that can
// never match the column, such as a non-uuid id.
func IsInvalidText(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == codeInvalidText
}

// StatusCode returns the HTTP status of a backend error, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// parseError accepts the PostgREST, GoTrue and storage error shapes.
func parseError(body []byte, statusCode int) error {
	var resp struct {
		Code             json.RawMessage `json:"code"`
		ErrorCode        string          `json:"error_code"`
		Message          string          `json:"message"`
		Msg              string          `json:"msg"`
		Details          string          `json:"details"`
		Hint             string          `json:"hint"`
		Error            string          `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = "unexpected status " + httpStatusText(statusCode)
		}
		return &Error{Code: "unknown", Message: msg, StatusCode: statusCode}
	}

	msg := firstNonEmpty(resp.Message, resp.Msg, resp.ErrorDescription, resp.Error)
	if msg == "" {
		msg = "unexpected status " + httpStatusText(statusCode)
	}
	code := resp.ErrorCode
	if code == "" && len(resp.Code) > 0 {
		// GoTrue sends a numeric code, PostgREST a string.
		var s string
		if json.Unmarshal(resp.Code, &s) == nil {
			code = s
		} else {
			code = string(resp.Code)
		}
	}
	return &Error{Code: code, Message: msg, Details: resp.Details, Hint: resp.Hint, StatusCode: statusCode}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func httpStatusText(code int) string {
	return strconv.Itoa(code) + " " + http.StatusText(code)
}
