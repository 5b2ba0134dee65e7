package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for fetch operations.
//
// Design decision: Errors returned by the fetchers are wrapped by the
// orchestrator as fetch failures, so these only need to say what went
// wrong with the request itself.
var (
	// ErrDisallowedByRobots is returned when robots.txt forbids the URL.
	ErrDisallowedByRobots = errors.New("disallowed by robots.txt")

	// ErrInvalidOnionAddress is returned by OnionResolver for .onion hosts
	// that are not valid v3 addresses.
	ErrInvalidOnionAddress = errors.New("invalid onion address")
)

// StatusError is returned when the server answers with a 4xx or 5xx status.
type StatusError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status code of the response.
	StatusCode int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}
