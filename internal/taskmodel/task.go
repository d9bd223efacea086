// Package taskmodel defines the domain types submitted across the AP/TA
// boundary: tasks, their parameters, and the applications that own them.
//
// Design constraints:
//   - Task identity (ID) never changes after creation.
//   - Direction governs dependency-edge creation in the analyzer; see
//     internal/datainfo (Provider.Access) for how it is consumed.
package taskmodel

import "sync/atomic"

// State is the lifecycle state of a Task.
type State int

const (
	ToAnalyse State = iota
	ToExecute
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case ToAnalyse:
		return "TO_ANALYSE"
	case ToExecute:
		return "TO_EXECUTE"
	case Finished:
		return "FINISHED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether the state is Finished or Failed.
func (s State) IsTerminal() bool { return s == Finished || s == Failed }

// Direction is the access mode of a Parameter, governing edge creation and
// version bumps in the data-access analyzer.
type Direction int

const (
	In Direction = iota
	Out
	InOut
	Concurrent
	Commutative
)

func (d Direction) String() string {
	switch d {
	case In:
		return "IN"
	case Out:
		return "OUT"
	case InOut:
		return "INOUT"
	case Concurrent:
		return "CONCURRENT"
	case Commutative:
		return "COMMUTATIVE"
	default:
		return "UNKNOWN"
	}
}

// Reads reports whether the direction requires a read of the current version.
func (d Direction) Reads() bool { return d != Out }

// Writes reports whether the direction produces a new version.
func (d Direction) Writes() bool { return d != In }

// IsGroup reports whether the direction participates in a concurrent/
// commutative access group (§4.2: peers in the group are not ordered
// against one another until the group closes).
func (d Direction) IsGroup() bool { return d == Concurrent || d == Commutative }

// ParamType is the declared type of a Parameter's value.
type ParamType int

const (
	Primitive ParamType = iota
	File
	Object
	Stream
	Collection
)

// DataRef identifies the logical datum a Parameter refers to: either a file
// path (canonicalized by the caller) or an opaque id assigned by the
// DataInfoProvider on first observation.
type DataRef struct {
	Path string // non-empty for File-typed parameters
	ID   string // opaque id for non-file data; assigned by DIP if empty
}

// Key returns the registry key for this reference: the path for file data,
// the id otherwise.
func (r DataRef) Key() string {
	if r.Path != "" {
		return "file:" + r.Path
	}
	return "id:" + r.ID
}

// Parameter is a single element of a Task's parameter vector.
type Parameter struct {
	Value     any
	Ref       DataRef
	Type      ParamType
	Direction Direction
}

// Flags carries the scheduling hints that accompany a Task description.
type Flags struct {
	Prioritary  bool
	Replicated  bool
	Distributed bool
	HasTarget   bool
	NumNodes    int
}

// Description is the immutable, caller-supplied shape of a Task: what to run
// and over which parameters.
type Description struct {
	// MethodOrService identifies the method/service being invoked. The core
	// does not interpret this value; it is opaque to everything except the
	// out-of-scope dispatcher.
	MethodOrService string
	Parameters      []Parameter
	Flags           Flags
}

// Exception is a user-domain exception. Only a TASK_ENDED report carries one
// (request.Outcome.Exception); NEW_TASK and END_OF_APP payloads have no
// exception field.
type Exception struct {
	Name    string
	Message string
}

// Task is a submitted work item tracked by the graph.
//
// Task is a plain data holder; predecessor/successor membership lives in the
// id-keyed graph container (internal/graph), not as pointers on the Task
// itself, so that cyclic references never stand in the way of reclamation
// (design note §9).
type Task struct {
	ID          int64
	AppID       string
	Description Description
	State       State

	// Enforcing, if non-zero, is the id of a task that must finish before
	// this one, regardless of data dependencies (a scheduling hint).
	Enforcing int64

	// PendingExecution counts outstanding replicated copies; the task is
	// "free" (eligible for completion bookkeeping) once it reaches zero.
	// Set by the analyzer at dispatch time from the copy count the
	// TaskDispatcher returns.
	PendingExecution int32

	// Handles holds opaque references a TaskDispatcher may attach to the
	// task it is handed. The core neither sets nor interprets them.
	Handles []any

	// Exception is set from the Outcome of a failing TASK_ENDED report, on
	// the task that reported the failure only (not on cascade-failed
	// dependents). A successful report's exception is not stored.
	Exception *Exception
}

// IDAllocator issues unique, monotonically increasing task ids starting at 1.
//
// Each RuntimeContext owns its own allocator so that tests can run in
// isolation without cross-contamination (design note §9; no process-wide
// singleton).
type IDAllocator struct {
	counter int64
}

// NewIDAllocator returns an allocator whose first Next() call returns 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next returns the next unique id (I1: unique within the process lifetime).
func (a *IDAllocator) Next() int64 {
	return atomic.AddInt64(&a.counter, 1)
}

// NewTask constructs a Task in ToAnalyse state with the given id. Task ids
// are allocated monotonically (IDAllocator), so ascending-by-id iteration
// order is already creation order; nothing else needs its own sequence
// counter.
func NewTask(id int64, appID string, desc Description, enforcing int64) *Task {
	return &Task{
		ID:          id,
		AppID:       appID,
		Description: desc,
		State:       ToAnalyse,
		Enforcing:   enforcing,
	}
}
