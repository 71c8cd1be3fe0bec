package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrTransport matches both NetworkError and TimeoutError via errors.Is.
var ErrTransport = errors.New("transport failure")

// HTTPError is returned for any non-2xx backend response.
type HTTPError struct {
	Method     string
	URL        string
	Status     int
	StatusText string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.StatusText)
}

// NetworkError wraps a transport failure other than a timeout.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrTransport }

// TimeoutError is returned when a request exceeded its timeout.
type TimeoutError struct {
	Method  string
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %s %s timed out after %s", e.Method, e.URL, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTransport }

// ValidationError reports invalid input rejected before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

func newHTTPError(method, url string, status int, body []byte) *HTTPError {
	return &HTTPError{
		Method:     method,
		URL:        url,
		Status:     status,
		StatusText: http.StatusText(status),
		Body:       string(body),
	}
}
