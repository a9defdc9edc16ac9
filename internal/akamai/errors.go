package akamai

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound reports that a resource, or a field the caller needs from it, is absent.
	ErrNotFound = errors.New("not found")

	// ErrMalformed reports a response that lacks its mandatory top-level structure.
	ErrMalformed = errors.New("malformed response")
)

// APIError is a non-2xx response from the API, decoded from its problem+json body when possible.
type APIError struct {
	StatusCode int
	Path       string
	Title      string `json:"title"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	msg := e.Title
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("GET %s: %d %s", e.Path, e.StatusCode, msg)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsAuthError returns true if err carries a 401 or 403 response.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// notFound wraps ErrNotFound with what was missing.
func notFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
