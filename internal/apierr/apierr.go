// Package apierr defines the typed error kinds used across the dispatch
// path for HTTP status mapping (spec §7) and the Metrics Collector's
// agent_error_total error_type label.
package apierr

import "fmt"

type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindDispatchFailure Kind = "dispatch_failure"
	KindCircuitOpen     Kind = "circuit_open"
	KindCheckpoint      Kind = "checkpoint_failure"
)

// Error carries a Kind alongside the wrapped cause so handlers can map it
// to an HTTP status and the metrics collector can label it.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind implements metrics.ErrorKindProvider.
func (e *Error) ErrorKind() string { return string(e.Kind) }

func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func NotFound(msg string) *Error { return New(KindNotFound, msg, nil) }

func Validation(msg string) *Error { return New(KindValidation, msg, nil) }

func DispatchFailure(msg string, cause error) *Error {
	return New(KindDispatchFailure, msg, cause)
}

func CircuitOpen(provider string) *Error {
	return New(KindCircuitOpen, fmt.Sprintf("%s circuit breaker is open", provider), nil)
}

func Checkpoint(msg string, cause error) *Error {
	return New(KindCheckpoint, msg, cause)
}

// StatusCode maps a Kind to the HTTP status per spec §7.
func StatusCode(err error) int {
	var apiErr *Error
	if ae, ok := err.(*Error); ok {
		apiErr = ae
	}
	if apiErr == nil {
		return 500
	}
	switch apiErr.Kind {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindDispatchFailure, KindCircuitOpen, KindCheckpoint:
		return 500
	default:
		return 500
	}
}
