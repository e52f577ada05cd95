package client

import (
	"errors"
	"net/http"

	"github.com/Sternrassler/marvel-heroes-client/pkg/catalog"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrQuotaExceeded is wrapped by the rate-limited error returned when the
	// local quota tracker blocks a request.
	ErrQuotaExceeded = errors.New("daily call quota exceeded")
)

// classifyStatus maps a non-2xx status code to a catalog error.
func classifyStatus(statusCode int) *catalog.Error {
	switch {
	case statusCode == http.StatusUnauthorized:
		return catalog.NewAuthError()
	case statusCode == http.StatusTooManyRequests:
		return catalog.NewRateLimitedError(statusCode)
	default:
		return catalog.NewInvalidResponseError(statusCode)
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(err error) bool {
	var ce *catalog.Error
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Kind {
	case catalog.ErrorKindNetwork:
		return true
	case catalog.ErrorKindInvalidResponse:
		// 5xx is transient, 4xx will fail the same way again
		return ce.StatusCode >= 500
	case catalog.ErrorKindRateLimited:
		// The quota is daily; retrying only burns more calls.
		return false
	default:
		return false
	}
}

// errorLabel returns the metrics label for err.
func errorLabel(err error) string {
	if kind := catalog.KindOf(err); kind != "" {
		return string(kind)
	}
	return "unknown"
}
