// Package udisp implements a microsecond-scale request dispatcher:
// a dispatcher goroutine classifying and scheduling tasks across a fixed
// worker pool, with cooperative or best-effort interrupt-driven preemption
// bounding how long any one worker can monopolize its class's budget.
package udisp

import "github.com/kgriffin/udisp/internal/errs"

// Code is a high-level error category, matching the disposition table in
// the error handling design: pool exhaustion, malformed packet, unknown
// type, send failure, protocol violation (fatal), spurious preemption
// (ignored), and benchmark-stop. It is an alias of internal/errs.Code so
// internal/dispatch and internal/worker can produce a Code-carrying Error
// at the point an event is actually observed, not only at this package's
// public boundary.
type Code = errs.Code

const (
	CodePoolExhausted     = errs.CodePoolExhausted
	CodeMalformedPacket   = errs.CodeMalformedPacket
	CodeUnknownType       = errs.CodeUnknownType
	CodeSendFailed        = errs.CodeSendFailed
	CodeProtocolViolation = errs.CodeProtocolViolation
	CodeSpuriousPreempt   = errs.CodeSpuriousPreempt
	CodeBenchmarkStop     = errs.CodeBenchmarkStop
	CodeSetupFailed       = errs.CodeSetupFailed
)

// Error is a structured error carrying enough context to diagnose which
// operation, class, and worker it came from, adapted from the teacher's
// device-oriented *Error type to this dispatcher's task-oriented fields.
type Error = errs.Error

// NewError creates a structured Error with class/worker unset.
func NewError(op string, code Code, msg string) *Error {
	return errs.New(op, code, msg)
}

// NewWorkerError creates a structured Error scoped to one worker.
func NewWorkerError(op string, worker int, code Code, msg string) *Error {
	return errs.NewWorker(op, worker, code, msg)
}

// NewClassError creates a structured Error scoped to one traffic class.
func NewClassError(op string, class int, code Code, msg string) *Error {
	return errs.NewClass(op, class, code, msg)
}

// WrapError wraps inner under op, preserving class/worker/code if inner is
// already a structured *Error.
func WrapError(op string, inner error) *Error {
	return errs.Wrap(op, inner)
}

// IsCode reports whether err is a structured Error with the given Code.
func IsCode(err error, code Code) bool {
	return errs.IsCode(err, code)
}
