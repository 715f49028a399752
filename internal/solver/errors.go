package solver

import (
	"fmt"
	"net/http"
)

// TransportError is a call that never produced an HTTP response: DNS,
// connection refused, timeout, cancelled context or an open circuit breaker.
type TransportError struct {
	Op  string // "optimize" or "fetch"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a response with a status outside 2xx. Body holds at most
// maxErrorBody bytes of the response.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("optimization service returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// MalformedResponseError is a 2xx response whose body is not a result object.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from optimization service: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
