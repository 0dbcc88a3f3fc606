// Package errors defines the typed error taxonomy surfaced across the
// control plane: upstream classification (C2), instance lifecycle errors
// (C8), and health-check failures (C5) all resolve to one of these kinds so
// callers can branch on Kind without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies a category of typed error.
type Kind string

const (
	KindValidation                Kind = "ValidationError"
	KindNotFound                  Kind = "NotFoundError"
	KindAuthentication             Kind = "AuthenticationError"
	KindRateLimit                 Kind = "RateLimitError"
	KindTimeout                   Kind = "TimeoutError"
	KindNetwork                   Kind = "NetworkError"
	KindServer                    Kind = "ServerError"
	KindClient                    Kind = "ClientError"
	KindResourceConstraints       Kind = "ResourceConstraintsError"
	KindInstanceNotStartable      Kind = "InstanceNotStartable"
	KindStartupOperationInProgress Kind = "StartupOperationInProgress"
	KindStartupFailed             Kind = "StartupFailedError"
	KindHealthCheckFailed         Kind = "HealthCheckFailedError"
)

// HTTPStatus returns the mapping from §7's taxonomy table. Used by the HTTP
// handlers to set the response status code; zero value means "use 500".
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindAuthentication:
		return 401
	case KindRateLimit:
		return 429
	case KindTimeout:
		return 504
	case KindNetwork:
		return 502
	case KindServer:
		return 502
	case KindClient:
		return 400
	case KindResourceConstraints:
		return 409
	case KindInstanceNotStartable:
		return 409
	case KindStartupOperationInProgress:
		return 409
	case KindStartupFailed:
		return 500
	case KindHealthCheckFailed:
		return 503
	default:
		return 500
	}
}

// Error is the concrete typed error. RetryAfterSeconds is only meaningful
// for KindRateLimit. Phase/Reason are only meaningful for KindStartupFailed.
type Error struct {
	Kind              Kind
	Message           string
	RetryAfterSeconds int
	Phase             string
	Reason            string
	Cause             error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, errors.New(KindNotFound, "")) match on Kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func RateLimit(retryAfterSeconds int, msg string) *Error {
	return &Error{Kind: KindRateLimit, Message: msg, RetryAfterSeconds: retryAfterSeconds}
}

func StartupFailed(phase, reason string) *Error {
	return &Error{Kind: KindStartupFailed, Message: fmt.Sprintf("startup failed in phase %s: %s", phase, reason), Phase: phase, Reason: reason}
}

// KindOf extracts the Kind of err if it (or something it wraps) is *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Retryable reports whether the upstream client should retry a request that
// failed with this error, per §4.2's retry policy.
func Retryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindRateLimit, KindTimeout, KindNetwork, KindServer:
		return true
	default:
		return false
	}
}
