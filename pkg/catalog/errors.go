package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by HeroLookup when the catalog has no such hero.
var ErrNotFound = errors.New("hero not found")

// ErrorKind classifies catalog failures. Consumers only need the message;
// the kind exists for metrics, logging and retry decisions.
type ErrorKind string

const (
	// ErrorKindNetwork represents transport failures and timeouts.
	ErrorKindNetwork ErrorKind = "network"

	// ErrorKindInvalidResponse represents non-2xx responses.
	ErrorKindInvalidResponse ErrorKind = "invalid_response"

	// ErrorKindDecode represents a body that could not be decoded.
	ErrorKindDecode ErrorKind = "decode"

	// ErrorKindAuth represents rejected credentials (401).
	ErrorKindAuth ErrorKind = "auth"

	// ErrorKindInvalidRequest represents a request that could not be built.
	ErrorKindInvalidRequest ErrorKind = "invalid_request"

	// ErrorKindRateLimited represents an exhausted call quota (429 or local quota).
	ErrorKindRateLimited ErrorKind = "rate_limited"
)

// Error is a catalog failure carrying a human-readable description.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface with a message suitable for display.
func (e *Error) Error() string {
	switch e.Kind {
	case ErrorKindNetwork:
		return fmt.Sprintf("Network error: %s", e.detail())
	case ErrorKindInvalidResponse:
		return fmt.Sprintf("Invalid response from server (Status: %d)", e.StatusCode)
	case ErrorKindDecode:
		return fmt.Sprintf("Failed to decode data: %s", e.detail())
	case ErrorKindAuth:
		return "Authentication failed with Marvel API"
	case ErrorKindInvalidRequest:
		return fmt.Sprintf("Invalid request: %s", e.detail())
	case ErrorKindRateLimited:
		return "Marvel API call quota exceeded, try again later"
	default:
		return e.detail()
	}
}

func (e *Error) detail() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Message != "":
		return e.Message
	default:
		return "unknown error"
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a catalog error anywhere in err's chain, or ""
// when err is not a catalog error.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(err error) *Error {
	return &Error{Kind: ErrorKindNetwork, Err: err}
}

// NewInvalidResponseError reports an unexpected HTTP status.
func NewInvalidResponseError(statusCode int) *Error {
	return &Error{Kind: ErrorKindInvalidResponse, StatusCode: statusCode}
}

// NewDecodeError wraps a body decoding failure.
func NewDecodeError(err error) *Error {
	return &Error{Kind: ErrorKindDecode, Err: err}
}

// NewAuthError reports rejected credentials.
func NewAuthError() *Error {
	return &Error{Kind: ErrorKindAuth, StatusCode: 401}
}

// NewInvalidRequestError reports a request that could not be built.
func NewInvalidRequestError(msg string, err error) *Error {
	return &Error{Kind: ErrorKindInvalidRequest, Message: msg, Err: err}
}

// NewRateLimitedError reports an exhausted call quota.
func NewRateLimitedError(statusCode int) *Error {
	return &Error{Kind: ErrorKindRateLimited, StatusCode: statusCode}
}
