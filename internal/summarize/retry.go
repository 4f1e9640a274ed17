package summarize

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// StatusError is a provider failure with the HTTP status the endpoint returned.
type StatusError struct {
	Provider string
	Status   int
	Err      error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// retryable reports whether err is transient: network trouble, per-call
// timeouts, 429, or 5xx. Other 4xx responses and cancellation are permanent.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if stderrors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500 || se.Status == 0
	}
	return true
}
