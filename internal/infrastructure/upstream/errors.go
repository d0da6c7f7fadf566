package upstream

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/pkg/errors"
)

// Error is a failed upstream call.
type Error struct {
	StatusCode int
	Message    string
	Body       string
	// Temporary marks failures worth retrying regardless of status.
	Temporary bool
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream request failed: %s", e.Message)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether err is a network failure, a timeout, a 429 or
// a 5xx response. Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var upErr *Error
	if errors.As(err, &upErr) {
		if upErr.Temporary {
			return true
		}
		return upErr.StatusCode == http.StatusTooManyRequests || upErr.StatusCode >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr.StatusCode
	}
	return 0
}
