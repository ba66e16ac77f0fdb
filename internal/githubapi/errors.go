package githubapi

import (
	"fmt"
	"net/http"
)

// TransportError is a network-level failure reaching the GitHub API.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx response from the GitHub API.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	if e.RateLimited() {
		return fmt.Sprintf("github api returned %d for %s (possible rate limit)", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("github api returned %d for %s", e.StatusCode, e.URL)
}

// RateLimited reports whether the status likely indicates a rate-limit
// rejection. GitHub surfaces primary rate limits as 403.
func (e *HTTPError) RateLimited() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests
}
