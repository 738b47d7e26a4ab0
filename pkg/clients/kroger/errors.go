package kroger

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind buckets remote failures by how callers should react to them.
type ErrorKind string

const (
	// KindUpstreamUnavailable covers network errors, timeouts and 5xx
	// responses. Retryable with backoff.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	// KindRateLimited is a 429. Retryable, honoring any Retry-After hint.
	KindRateLimited ErrorKind = "rate_limited"
	// KindInvalidLocation means the catalog rejected the location id.
	KindInvalidLocation ErrorKind = "invalid_location"
	// KindInvalidRequest is any other non-auth 4xx. Not retryable.
	KindInvalidRequest ErrorKind = "invalid_request"
	// KindAuthExpired is a 401; the caller may refresh the token once.
	KindAuthExpired ErrorKind = "auth_expired"
)

// APIError is the typed failure returned by every client method.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("kroger api: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("kroger api: %s: %s", e.Kind, e.Message)
}

// Retryable reports whether the failure class is safe to retry with backoff.
func (e *APIError) Retryable() bool {
	return e.Kind == KindUpstreamUnavailable || e.Kind == KindRateLimited
}

// KindOf extracts the ErrorKind from an error chain. Errors that did not
// originate from the client are treated as upstream unavailability.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUpstreamUnavailable
}

func classify(status int, message string) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthExpired
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= http.StatusInternalServerError:
		return KindUpstreamUnavailable
	case strings.Contains(strings.ToLower(message), "location"):
		return KindInvalidLocation
	default:
		return KindInvalidRequest
	}
}
