package adsb

import (
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from the aircraft API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("aircraft api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("aircraft api: status %d: %s", e.StatusCode, body)
}

// Temporary reports whether retrying the request could help.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
