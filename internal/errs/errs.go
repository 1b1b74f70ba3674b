// Package errs defines the structured error type shared by the dispatcher,
// worker, and root packages, so a Code from the error-handling disposition
// table (spec.md §7) can be produced at the point an event is actually
// observed — inside internal/dispatch's classify step or internal/worker's
// pool-acquire path — rather than only at the root package's public
// boundary. The root package re-exports Code/Error under the same names for
// callers, so this split is invisible to udisp's own API.
package errs

import (
	"errors"
	"fmt"
)

// Code is a high-level error category, matching the disposition table in
// the error handling design: pool exhaustion, malformed packet, unknown
// type, send failure, protocol violation (fatal), spurious preemption
// (ignored), and benchmark-stop.
type Code string

const (
	CodePoolExhausted     Code = "context pool exhausted"
	CodeMalformedPacket   Code = "malformed packet"
	CodeUnknownType       Code = "unknown operation type"
	CodeSendFailed        Code = "response send failed"
	CodeProtocolViolation Code = "slot protocol violation"
	CodeSpuriousPreempt   Code = "spurious preemption observed"
	CodeBenchmarkStop     Code = "benchmark stop condition reached"
	CodeSetupFailed       Code = "setup failed"
)

// Error is a structured error carrying enough context to diagnose which
// operation, class, and worker it came from, adapted from the teacher's
// device-oriented *Error type to this dispatcher's task-oriented fields.
type Error struct {
	Op     string // operation that failed, e.g. "Dispatcher.assign"
	Class  int    // traffic class index, -1 if not applicable
	Worker int    // worker index, -1 if not applicable
	Code   Code
	Msg    string
	Inner  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Class >= 0 {
		parts = append(parts, fmt.Sprintf("class=%d", e.Class))
	}
	if e.Worker >= 0 {
		parts = append(parts, fmt.Sprintf("worker=%d", e.Worker))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("udisp: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("udisp: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Inner }

// Is provides errors.Is support by comparing Code.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// New creates a structured Error with class/worker unset.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Class: -1, Worker: -1, Code: code, Msg: msg}
}

// NewWorker creates a structured Error scoped to one worker.
func NewWorker(op string, worker int, code Code, msg string) *Error {
	return &Error{Op: op, Class: -1, Worker: worker, Code: code, Msg: msg}
}

// NewClass creates a structured Error scoped to one traffic class.
func NewClass(op string, class int, code Code, msg string) *Error {
	return &Error{Op: op, Class: class, Worker: -1, Code: code, Msg: msg}
}

// Wrap wraps inner under op, preserving class/worker/code if inner is
// already a structured *Error.
func Wrap(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ue, ok := inner.(*Error); ok {
		return &Error{Op: op, Class: ue.Class, Worker: ue.Worker, Code: ue.Code, Msg: ue.Msg, Inner: ue.Inner}
	}
	return &Error{Op: op, Class: -1, Worker: -1, Code: CodeSendFailed, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a structured Error with the given Code.
func IsCode(err error, code Code) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code == code
	}
	return false
}
