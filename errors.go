package gate

import (
	"fmt"
	"net/http"
	"time"
)

// Error codes returned in JSON error bodies
const (
	ErrorCodeInvalidRequest    = "invalid_request"
	ErrorCodeForbidden         = "forbidden"
	ErrorCodeNotFound          = "not_found"
	ErrorCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrorCodeInvalidTimestamp  = "invalid_timestamp"
	ErrorCodeInvalidCapability = "invalid_capability"
	ErrorCodeMethodNotAllowed  = "method_not_allowed"
	ErrorCodeUnavailable       = "temporarily_unavailable"
	ErrorCodeServerError       = "server_error"
)

// Redemption failure reasons reported to clients. Every redemption failure
// other than pure expiry is reported as ReasonInvalidSignature.
const (
	ReasonExpired          = "Expired"
	ReasonInvalidSignature = "Invalid signature"
)

// GateError represents an error response
type GateError struct {
	Code        string // error code (e.g., "invalid_request", "forbidden")
	Description string // Human-readable error description
	Status      int    // HTTP status code
	// Reason is set on redemption failures (ReasonExpired or ReasonInvalidSignature).
	Reason string
	// RetryAfter is sent as a Retry-After header when positive.
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *GateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Description, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewGateError creates a new error
func NewGateError(code, description string, status int) *GateError {
	return &GateError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// Common errors as constructors
var (
	// ErrInvalidRequest indicates missing or malformed request fields
	ErrInvalidRequest = func(desc string) *GateError {
		return NewGateError(ErrorCodeInvalidRequest, desc, http.StatusBadRequest)
	}

	// ErrForbidden is returned for classifier, probe and unknown-resource
	// rejections on issuance. The body is identical for all three.
	ErrForbidden = func() *GateError {
		return NewGateError(ErrorCodeForbidden, "Forbidden", http.StatusForbidden)
	}

	// ErrNotFound indicates an unknown resource
	ErrNotFound = func() *GateError {
		return NewGateError(ErrorCodeNotFound, "Not found", http.StatusNotFound)
	}

	// ErrRateLimited indicates the client exceeded its request window
	ErrRateLimited = func() *GateError {
		return NewGateError(ErrorCodeRateLimitExceeded, "Too many requests. Please try again later.", http.StatusTooManyRequests)
	}

	// ErrInvalidTimestamp indicates the issuance timestamp is outside tolerance
	ErrInvalidTimestamp = func() *GateError {
		return NewGateError(ErrorCodeInvalidTimestamp, "Invalid timestamp", http.StatusForbidden)
	}

	// ErrRedemption indicates a rejected redemption with the given reason
	ErrRedemption = func(reason string) *GateError {
		e := NewGateError(ErrorCodeInvalidCapability, reason, http.StatusForbidden)
		e.Reason = reason
		return e
	}

	// ErrUnavailable indicates a dependency (the rate limit store) failed
	ErrUnavailable = func() *GateError {
		return NewGateError(ErrorCodeUnavailable, "Service temporarily unavailable", http.StatusServiceUnavailable)
	}

	// ErrServerError indicates an internal server error occurred
	ErrServerError = func(desc string) *GateError {
		return NewGateError(ErrorCodeServerError, desc, http.StatusInternalServerError)
	}
)
