// Package apperr tags errors with the §7 error-kind taxonomy so that
// callers (chiefly the Gate's HTTP layer) can pick the right status and
// response shape without string-matching error messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the seven error kinds from spec §7.
type Kind string

const (
	Validation      Kind = "validation"       // signature/shape/value errors, never retried
	Policy          Kind = "policy"           // lock/stale/cap/calendar/context rejections
	BrokerTransient Kind = "broker_transient" // reconciliation fetch failed, continue on cached state
	BrokerPermanent Kind = "broker_permanent" // order submission failed after approval
	StreamFailure   Kind = "stream_failure"   // Brain's ingest connection dropped
	Notification    Kind = "notification"     // heartbeat/notifier failure, never impacts trading
	Internal        Kind = "internal"         // invariant violation, 500 + full log
)

// AppError wraps an underlying error with a Kind and a human-readable
// reason suitable for returning directly in an HTTP response body.
type AppError struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *AppError) Unwrap() error { return e.Err }

// New builds an AppError carrying a reason but no wrapped cause.
func New(kind Kind, reason string) *AppError {
	return &AppError{Kind: kind, Reason: reason}
}

// Wrap builds an AppError around an existing error.
func Wrap(kind Kind, reason string, err error) *AppError {
	return &AppError{Kind: kind, Reason: reason, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) an *AppError,
// defaulting to Internal otherwise.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// ReasonOf extracts a human-readable reason, falling back to err.Error().
func ReasonOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
