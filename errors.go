package remotecall

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/JohnPlummer/jp-go-errors"
)

// FailureKind tags a remote failure for retry eligibility. Only
// KindAuthentication and KindInvalidResponse are retried with backoff;
// everything else propagates immediately.
type FailureKind int

const (
	// KindUnclassified covers every failure that is neither an
	// authentication nor an invalid-response failure. Unclassified failures
	// are never retried.
	KindUnclassified FailureKind = iota

	// KindAuthentication means the remote endpoint rejected the caller's
	// credentials (expired token, revoked key, 401/403).
	KindAuthentication

	// KindInvalidResponse means the remote endpoint answered, but the
	// response failed schema or sanity validation.
	KindInvalidResponse
)

// String returns the string representation of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindInvalidResponse:
		return "invalid_response"
	case KindUnclassified:
		return "unclassified"
	default:
		return "unknown"
	}
}

// AuthenticationError tags a failure as a rejected or expired credential.
// Wrap the transport error so errors.Is/As still reach the original cause.
type AuthenticationError struct {
	Err error
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Err.Error()
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// NewAuthenticationError wraps err as an authentication failure.
func NewAuthenticationError(err error) error {
	return &AuthenticationError{Err: err}
}

// InvalidResponseError tags a failure as a response that could not be
// validated: truncated body, schema mismatch, impossible values.
type InvalidResponseError struct {
	Err error
}

// Error implements the error interface.
func (e *InvalidResponseError) Error() string {
	return "invalid response: " + e.Err.Error()
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}

// NewInvalidResponseError wraps err as an invalid-response failure.
func NewInvalidResponseError(err error) error {
	return &InvalidResponseError{Err: err}
}

// ExhaustedError is the terminal failure returned when every attempt was
// consumed by a retryable failure kind. It carries the kind, the total
// number of invocations made, and the last cause.
type ExhaustedError struct {
	Kind     FailureKind
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failure after %d attempts: %v", e.Kind, e.Attempts, e.Err)
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// FailureClassifier maps errors from a remote operation onto the retry
// taxonomy. Implement this to teach the caller about your client library's
// error types.
type FailureClassifier interface {
	// Classify returns the failure kind for err. KindUnclassified means
	// "do not retry".
	Classify(err error) FailureKind
}

// TripClassifier determines whether an error should trip the circuit breaker.
// Implement this to customize circuit breaker behavior for your error types.
type TripClassifier interface {
	// ShouldTrip returns true if the error represents a failure serious
	// enough to open the circuit and stop calls temporarily.
	ShouldTrip(err error) bool
}

// HTTPError represents an error with an associated HTTP status code.
// Many HTTP client libraries provide errors that implement this interface.
type HTTPError interface {
	error
	StatusCode() int
}

// StatusClassifier classifies failures first by tagged error type
// (AuthenticationError, InvalidResponseError) and then by HTTP status code
// for clients that only surface a status.
type StatusClassifier struct {
	// AuthStatuses lists HTTP status codes treated as authentication
	// failures. Defaults to 401, 403 if nil.
	AuthStatuses []int

	// InvalidResponseStatuses lists HTTP status codes treated as
	// invalid-response failures. Defaults to 400, 422 if nil.
	InvalidResponseStatuses []int
}

// NewStatusClassifier creates a StatusClassifier with default status code
// mappings.
// Authentication: 401 (unauthorized), 403 (forbidden)
// Invalid response: 400 (bad request), 422 (unprocessable entity)
func NewStatusClassifier() *StatusClassifier {
	return &StatusClassifier{
		AuthStatuses:            []int{401, 403},
		InvalidResponseStatuses: []int{400, 422},
	}
}

// Classify implements FailureClassifier.
// Tagged error types win over status codes. Context errors, timeouts, and
// rate limits are deliberately unclassified: retrying a canceled context is
// pointless, and rate limits want longer waits than this backoff provides.
func (c *StatusClassifier) Classify(err error) FailureKind {
	if err == nil {
		return KindUnclassified
	}

	// Context errors first: context.DeadlineExceeded would otherwise be
	// picked up by the timeout check below.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindUnclassified
	}
	if errors.Is(err, pkgerrors.ErrRateLimited) {
		return KindUnclassified
	}
	if pkgerrors.IsTimeout(err) {
		return KindUnclassified
	}

	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return KindAuthentication
	}
	var respErr *InvalidResponseError
	if errors.As(err, &respErr) {
		return KindInvalidResponse
	}

	statusCode := extractStatusCode(err)
	if statusCode == 0 {
		return KindUnclassified
	}
	if containsStatus(c.getAuthStatuses(), statusCode) {
		return KindAuthentication
	}
	if containsStatus(c.getInvalidResponseStatuses(), statusCode) {
		return KindInvalidResponse
	}

	return KindUnclassified
}

// ShouldTrip implements TripClassifier.
// Authentication failures trip the circuit: bad credentials do not heal by
// hammering the endpoint. Invalid responses, rate limits, and timeouts are
// transient and do not trip. Unknown errors trip to be safe.
func (c *StatusClassifier) ShouldTrip(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, pkgerrors.ErrRateLimited) {
		return false
	}
	if pkgerrors.IsTimeout(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	switch c.Classify(err) {
	case KindAuthentication:
		return true
	case KindInvalidResponse:
		return false
	}

	return true
}

// getAuthStatuses returns the configured authentication statuses or defaults.
func (c *StatusClassifier) getAuthStatuses() []int {
	if c.AuthStatuses != nil {
		return c.AuthStatuses
	}
	return []int{401, 403}
}

// getInvalidResponseStatuses returns the configured invalid-response statuses or defaults.
func (c *StatusClassifier) getInvalidResponseStatuses() []int {
	if c.InvalidResponseStatuses != nil {
		return c.InvalidResponseStatuses
	}
	return []int{400, 422}
}

// extractStatusCode attempts to extract an HTTP status code from various error types.
func extractStatusCode(err error) int {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode()
	}

	return 0
}

// containsStatus checks if a status code is in the list.
func containsStatus(statuses []int, status int) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// DefaultClassifier provides reasonable defaults for most use cases: tagged
// error types first, then 401/403 as authentication and 400/422 as invalid
// response.
func DefaultClassifier() FailureClassifier {
	return NewStatusClassifier()
}

// DefaultTripClassifier provides reasonable defaults for circuit breaker
// tripping: authentication failures and unknown errors trip, invalid
// responses and rate limits do not.
func DefaultTripClassifier() TripClassifier {
	return NewStatusClassifier()
}

// StatusCodeError wraps an error with an HTTP status code.
// Use this when you need to add status code information to an existing error.
type StatusCodeError struct {
	Err  error
	Code int
}

// Error implements the error interface.
func (e *StatusCodeError) Error() string {
	return e.Err.Error()
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *StatusCodeError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code.
// This implements the HTTPError interface.
func (e *StatusCodeError) StatusCode() int {
	return e.Code
}

// NewStatusCodeError creates a new StatusCodeError.
// This is useful when wrapping errors from clients that don't tag failures
// themselves.
//
// Example:
//
//	resp, err := doRequest()
//	if resp.StatusCode == http.StatusUnauthorized {
//	    return remotecall.NewStatusCodeError(resp.StatusCode, err)
//	}
func NewStatusCodeError(statusCode int, err error) error {
	return &StatusCodeError{
		Code: statusCode,
		Err:  err,
	}
}
