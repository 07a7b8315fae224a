package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrTransport marks failures where no response was received.
var ErrTransport = errors.New("api transport failure")

// CodeApprovedLocked is the structured code for edits refused on an approved task.
const CodeApprovedLocked = "TASK_APPROVED_LOCKED"

// approvedLockedText is matched against backends that do not send a code.
const approvedLockedText = "approved and locked"

// Error is a non-2xx backend response.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// newError extracts the message from a plain string body, then the message
// field, then the error field, falling back to the raw JSON.
func newError(status int, body []byte) *Error {
	apiErr := &Error{Status: status}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return apiErr
	}

	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		apiErr.Message = string(trimmed)
		return apiErr
	}

	switch v := decoded.(type) {
	case string:
		apiErr.Message = v
	case map[string]any:
		apiErr.Code = firstString(v, "code", "errorCode")
		apiErr.Message = firstString(v, "message", "error")
		if apiErr.Message == "" {
			apiErr.Message = string(trimmed)
		}
	default:
		apiErr.Message = string(trimmed)
	}
	return apiErr
}

func firstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := fields[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// IsApprovedLocked reports whether err is the backend refusing a status
// change because the task is approved and locked.
func IsApprovedLocked(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code != "" {
		return apiErr.Code == CodeApprovedLocked
	}
	return strings.Contains(apiErr.Message, approvedLockedText)
}

// IsUnauthorized reports a rejected or expired bearer token.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Message returns the backend message carried by err, or fallback for
// transport failures and empty bodies.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}
