package request

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrOffline is returned when a request is short-circuited because the
	// application is offline.
	ErrOffline = errors.New("application offline")

	// ErrCanceled is returned when a request is explicitly aborted.
	ErrCanceled = errors.New("request canceled")

	// ErrTimeout is returned when the adapter exceeds the configured timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// FailureClass classifies a normalized failure.
type FailureClass string

const (
	// FailureTransport marks adapter-level failures, eligible for retry.
	FailureTransport FailureClass = "transport"

	// FailureTimeout marks adapter invocations that exceeded the configured
	// timeout, eligible for retry.
	FailureTimeout FailureClass = "timeout"

	// FailureOffline marks requests short-circuited before the adapter was
	// invoked. Not retried automatically.
	FailureOffline FailureClass = "offline"

	// FailureCanceled marks explicit aborts. Terminal, never retried.
	FailureCanceled FailureClass = "canceled"
)

// Failure is the normalized error carried inside a failure envelope.
type Failure struct {
	Class   FailureClass
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Failure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Failure) Unwrap() error {
	return e.Err
}

// NewTransportFailure wraps an adapter error as a transport failure.
func NewTransportFailure(err error) *Failure {
	return &Failure{Class: FailureTransport, Message: "transport failure", Err: err}
}

// NewTimeoutFailure builds a timeout failure.
func NewTimeoutFailure() *Failure {
	return &Failure{Class: FailureTimeout, Message: ErrTimeout.Error(), Err: ErrTimeout}
}

// NewOfflineFailure builds an offline failure.
func NewOfflineFailure() *Failure {
	return &Failure{Class: FailureOffline, Message: ErrOffline.Error(), Err: ErrOffline}
}

// NewCanceledFailure builds a cancellation failure.
func NewCanceledFailure() *Failure {
	return &Failure{Class: FailureCanceled, Message: ErrCanceled.Error(), Err: ErrCanceled}
}

// ClassOf classifies an arbitrary error. Context deadline and cancellation
// errors are mapped onto the timeout and canceled classes so adapters can
// surface raw context errors.
func ClassOf(err error) FailureClass {
	if err == nil {
		return ""
	}

	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Class
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return FailureTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCanceled):
		return FailureCanceled
	case errors.Is(err, ErrOffline):
		return FailureOffline
	default:
		return FailureTransport
	}
}

// Retriable reports whether a failure class is eligible for retry.
// Transport and timeout failures may be retried; offline short circuits and
// explicit cancellations are terminal.
func Retriable(class FailureClass) bool {
	switch class {
	case FailureTransport, FailureTimeout:
		return true
	default:
		return false
	}
}
