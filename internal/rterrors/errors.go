// Package rterrors defines the error taxonomy from §7: concrete kinds
// rather than ad hoc strings, so callers can errors.Is/errors.As them.
package rterrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel kinds. Use errors.Is against these, not string matching.
var (
	// ErrQueueClosed is returned by every AccessProcessor submission once
	// the request queue has been shut down, whether cleanly or via an
	// AnalyzerFault.
	ErrQueueClosed = errors.New("queue closed")

	// ErrUnknownApp is the kind of the SubmissionError submit_task returns
	// once end_of_app has been called for the application. Barrier,
	// end_of_app and main_access never return it: the analyzer creates an
	// application record on first use.
	ErrUnknownApp = errors.New("unknown application")

	// ErrMalformedParameters is returned for a NEW_TASK whose parameter
	// vector fails basic validation (e.g. a File-typed parameter with no
	// path).
	ErrMalformedParameters = errors.New("malformed parameters")

	// ErrTimeout is returned by a blocking wait (main_access, barrier,
	// end_of_app) whose caller-supplied deadline elapsed first.
	ErrTimeout = errors.New("timeout")

	// ErrRuntimeAborted is the sentinel every pending waiter is signaled
	// with when an AnalyzerFault closes the queue.
	ErrRuntimeAborted = errors.New("runtime aborted")
)

// SubmissionError reports a synchronous rejection of a request at the
// AccessProcessor boundary (§7).
type SubmissionError struct {
	Kind error
	Msg  string
}

func (e *SubmissionError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *SubmissionError) Unwrap() error { return e.Kind }

func NewSubmissionError(kind error, format string, args ...any) *SubmissionError {
	return &SubmissionError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// TaskFailure wraps a worker-reported failure, cascaded to data dependents
// as FAILED and surfaced on the next barrier/end-of-app as a non-zero
// completion aggregate.
type TaskFailure struct {
	TaskID int64
	Reason string
}

func (e *TaskFailure) Error() string {
	return fmt.Sprintf("task %d failed: %s", e.TaskID, e.Reason)
}

// AnalyzerFault wraps an invariant violation inside the TaskAnalyser. It is
// fatal: the queue closes with ErrQueueClosed and every pending waiter is
// signaled with ErrRuntimeAborted. The wrapped error carries a stack trace
// (via github.com/pkg/errors) for postmortem logging, since by definition
// this path should never be hit in a correct runtime.
type AnalyzerFault struct {
	cause error
}

// NewAnalyzerFault wraps cause with a captured stack trace.
func NewAnalyzerFault(cause error) *AnalyzerFault {
	return &AnalyzerFault{cause: errors.WithStack(cause)}
}

func (e *AnalyzerFault) Error() string { return "analyzer fault: " + e.cause.Error() }
func (e *AnalyzerFault) Unwrap() error  { return e.cause }
