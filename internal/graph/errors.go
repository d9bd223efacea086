package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTask is returned when an operation names a task id that is
	// not (or no longer) present in the graph.
	ErrUnknownTask = errors.New("unknown task")

	// ErrInvariant is returned when an operation would violate one of the
	// graph invariants (I2/I3/I6). Callers in the analyzer treat this as an
	// AnalyzerFault (fatal to the runtime).
	ErrInvariant = errors.New("graph invariant violation")
)

// GraphError wraps a graph-layer failure with its concrete kind and context.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func unknownTaskf(format string, args ...any) error {
	return &GraphError{Kind: ErrUnknownTask, Msg: fmt.Sprintf(format, args...)}
}

func invariantf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvariant, Msg: fmt.Sprintf(format, args...)}
}
