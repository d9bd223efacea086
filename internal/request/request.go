// Package request defines the tagged variant AP enqueues and TA dispatches
// on, collapsing "sub-typing among request kinds" (design note §9) into one
// type with an exhaustive switch in the analyzer's main loop.
package request

import (
	"taskrt/internal/taskmodel"
)

// Kind discriminates the variant payload carried by a Request.
type Kind int

const (
	NewTask Kind = iota
	MainAccess
	TaskEnded
	Barrier
	EndOfApp
	Snapshot
)

func (k Kind) String() string {
	switch k {
	case NewTask:
		return "NEW_TASK"
	case MainAccess:
		return "MAIN_ACCESS"
	case TaskEnded:
		return "TASK_ENDED"
	case Barrier:
		return "BARRIER"
	case EndOfApp:
		return "END_OF_APP"
	case Snapshot:
		return "SNAPSHOT"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the worker-reported result of a task execution.
type Outcome struct {
	Failed    bool
	Reason    string
	Exception *taskmodel.Exception
}

// NewTaskPayload carries everything needed to register a task. TaskID is
// allocated synchronously by the AccessProcessor before enqueueing, so the
// submitting goroutine has a handle immediately (§4.1's submit_task
// contract) without waiting on the analyzer.
type NewTaskPayload struct {
	TaskID    int64
	AppID     string
	Desc      taskmodel.Description
	Enforcing int64
}

// NewTaskResult names the outcome of a submit_task call. NEW_TASK requests
// are fire-and-forget, so the analyzer never builds one: the id is
// allocated synchronously and returned by AccessProcessor.SubmitTask.
type NewTaskResult struct {
	TaskID int64
}

// MainAccessPayload is a main-thread access to a datum by direction.
type MainAccessPayload struct {
	AppID     string
	Ref       taskmodel.DataRef
	Direction taskmodel.Direction
}

// MainAccessResult reports the producer task (if any) whose completion the
// caller was waiting on, and the resolved ref (for newly-allocated ids).
type MainAccessResult struct {
	Ref      taskmodel.DataRef
	Producer int64
	HasData  bool
}

// TaskEndedPayload is delivered by the dispatcher when an execution
// completes (one per dispatched copy — replicated tasks deliver several).
type TaskEndedPayload struct {
	TaskID  int64
	Outcome Outcome
}

// BarrierPayload requests a signal once AppID has no live task left: every
// task it submitted before this request is terminal, and so is every task
// it submitted while the barrier was waiting.
type BarrierPayload struct {
	AppID string
}

// BarrierResult aggregates the terminal states observed at fire time.
type BarrierResult struct {
	Failed bool
}

// EndOfAppPayload marks that AppID will submit no further tasks.
// Per §9's preserved behavior, EndOfApp carries no exception field: a
// caller that tries to attach one has it silently discarded by the AP
// (there is nowhere to put it).
type EndOfAppPayload struct {
	AppID string
}

// EndOfAppResult mirrors BarrierResult: an app-level failure aggregate.
type EndOfAppResult struct {
	Failed bool
}

// Request is the tagged value enqueued by AP and consumed exclusively by
// TA. Exactly one of the payload fields is populated, matching Kind.
type Request struct {
	Kind Kind

	NewTask    *NewTaskPayload
	MainAccess *MainAccessPayload
	TaskEnded  *TaskEndedPayload
	Barrier    *BarrierPayload
	EndOfApp   *EndOfAppPayload

	// done, if non-nil, is signaled exactly once by the analyzer with the
	// outcome of processing this request. NEW_TASK and TASK_ENDED requests
	// leave it nil (fire-and-forget, §4.1).
	done chan Result
	// fired records that Signal has already delivered a result.
	fired bool
}

// Result is what a blocking request's signal delivers.
type Result struct {
	// Value holds the kind-specific result (MainAccessResult,
	// BarrierResult, EndOfAppResult, []graph.NodeSnapshot for Snapshot).
	Value any
	Err   error
}

// NewBlocking returns a Request of kind k with a fresh one-shot completion
// channel, ready to be waited on via Wait.
func NewBlocking(k Kind) *Request {
	return &Request{Kind: k, done: make(chan Result, 1)}
}

// NewFireAndForget returns a Request of kind k with no completion channel.
func NewFireAndForget(k Kind) *Request {
	return &Request{Kind: k}
}

// Signal fires the one-shot completion exactly once. Calling it on a
// fire-and-forget request, or a second time, is a no-op.
func (r *Request) Signal(res Result) {
	if r.done == nil || r.fired {
		return
	}
	r.fired = true
	r.done <- res
}

// Wait blocks until Signal is called, or ctx is done first.
func (r *Request) Wait(ctx doneCtx) (Result, error) {
	if r.done == nil {
		return Result{}, nil
	}
	select {
	case res := <-r.done:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// doneCtx is the minimal context.Context surface Wait needs, so this
// package does not have to import context just to name the parameter type
// (kept for documentation; callers pass a real context.Context).
type doneCtx interface {
	Done() <-chan struct{}
	Err() error
}
