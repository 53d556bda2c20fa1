package marketplace

import (
	"fmt"
	"time"
)

// RateLimitError is returned when the marketplace throttles an endpoint
// class, either via a live 429 or via the local tracker short-circuiting the
// call. Schedulers defer the job instead of counting a retry attempt.
type RateLimitError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("endpoint %s rate limited, retry after %s", e.Endpoint, e.RetryAfter)
}

// APIError is a non-429 error response from the marketplace.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace returned status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the error is worth a whole-job retry. Server-side
// failures are; 4xx rejections are not.
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500
}
