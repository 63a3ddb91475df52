package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target rate-limited the request (HTTP 429).
type ErrRateLimited struct {
	URL string
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate_limited: %s", e.URL)
}

// ErrHTTPStatus indicates a non-2xx response other than rate limiting.
type ErrHTTPStatus struct {
	Status int
	URL    string
}

func (e ErrHTTPStatus) Error() string {
	return fmt.Sprintf("http status %d from %s", e.Status, e.URL)
}

// classifyTransportError wraps transport-level failures in typed errors so
// callers and metrics can distinguish them with errors.As.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	return err
}

// classifyStatus maps a non-2xx status code to a typed error.
func classifyStatus(status int, url string) error {
	if status == http.StatusTooManyRequests {
		return ErrRateLimited{URL: url}
	}
	return ErrHTTPStatus{Status: status, URL: url}
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var status ErrHTTPStatus
	if errors.As(err, &status) {
		return "http_status"
	}
	return "other"
}
