package dot

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError captures non-2xx responses. The service answers JSON most of
// the time but can fall back to plain text.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("dot: API error (status=%d", e.StatusCode)
	if e.Code != "" {
		msg += ", code=" + e.Code
	}
	msg += ")"
	if m := strings.TrimSpace(e.Message); m != "" {
		msg += ": " + m
	}
	return msg
}

// IsAuthError reports whether err is a 401 or 403 from the service.
func IsAuthError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) &&
		(ae.StatusCode == http.StatusUnauthorized || ae.StatusCode == http.StatusForbidden)
}

// IsRateLimitError reports whether err is a 429 from the service.
func IsRateLimitError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusTooManyRequests
}

func buildAPIError(status int, body []byte) error {
	ae := &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}

	var envelope struct {
		Code    json.Number `json:"code"`
		Message string      `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Code != "" {
			ae.Code = envelope.Code.String()
		}
		if envelope.Message != "" {
			ae.Message = envelope.Message
		}
	}
	return ae
}
