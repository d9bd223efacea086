// Package analyzer implements the TaskAnalyser: the single goroutine that
// owns the dependency graph, the data registry, and every application's
// bookkeeping. Every other component talks to it only through the request
// queue (internal/access, internal/request) — nothing here takes a lock,
// because nothing here is ever touched from two goroutines at once (§5).
package analyzer

import (
	"context"
	"fmt"

	"taskrt/internal/dispatch"
	"taskrt/internal/request"
	"taskrt/internal/rterrors"
	"taskrt/internal/runtimectx"
	"taskrt/internal/taskmodel"
)

// Analyser drains a request queue and mutates the runtime state it owns in
// response: the dependency graph, the data registry, and per-application
// live-task bookkeeping.
type Analyser struct {
	rc    *runtimectx.Context
	queue <-chan *request.Request
	td    dispatch.TaskDispatcher
	abort func()

	enforcedBy  map[int64][]int64
	reads       map[int64][]readRecord
	mainWaiters map[int64][]*pendingMainAccess
	barriers    map[string][]*request.Request
	endOfApp    map[string][]*request.Request

	ready   readyHeap
	aborted bool
}

type readRecord struct {
	ref     taskmodel.DataRef
	version int
}

// New constructs an Analyser. abort is called at most once, the moment an
// AnalyzerFault is raised, and is expected to shut the AccessProcessor's
// queue down (see internal/access.AccessProcessor.Shutdown).
func New(rc *runtimectx.Context, queue <-chan *request.Request, td dispatch.TaskDispatcher, abort func()) *Analyser {
	return &Analyser{
		rc:          rc,
		queue:       queue,
		td:          td,
		abort:       abort,
		enforcedBy:  make(map[int64][]int64),
		reads:       make(map[int64][]readRecord),
		mainWaiters: make(map[int64][]*pendingMainAccess),
		barriers:    make(map[string][]*request.Request),
		endOfApp:    make(map[string][]*request.Request),
	}
}

// Run drains the queue until it is closed or ctx is done. It is meant to be
// the body of the single goroutine that owns this Analyser — starting a
// second one is a caller bug this package does not defend against.
func (a *Analyser) Run(ctx context.Context) {
	for {
		select {
		case r, ok := <-a.queue:
			if !ok {
				return
			}
			a.rc.Metrics.QueueDepth.Set(float64(len(a.queue)))
			a.process(ctx, r)
		case <-ctx.Done():
			return
		}
	}
}

func (a *Analyser) process(ctx context.Context, r *request.Request) {
	if a.aborted {
		r.Signal(request.Result{Err: rterrors.ErrRuntimeAborted})
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			a.fault(fmt.Errorf("recovered panic: %v", rec))
			r.Signal(request.Result{Err: rterrors.ErrRuntimeAborted})
		}
	}()

	switch r.Kind {
	case request.NewTask:
		a.handleNewTask(r.NewTask)
	case request.MainAccess:
		a.handleMainAccess(r)
	case request.TaskEnded:
		a.handleTaskEnded(r.TaskEnded)
	case request.Barrier:
		a.handleBarrier(r)
	case request.EndOfApp:
		a.handleEndOfApp(r)
	case request.Snapshot:
		r.Signal(request.Result{Value: a.rc.Graph.Snapshot()})
	default:
		a.fault(fmt.Errorf("unknown request kind %v", r.Kind))
		r.Signal(request.Result{Err: rterrors.ErrRuntimeAborted})
		return
	}

	a.drainReady(ctx)
}

// fault raises an AnalyzerFault: the queue is torn down and every pending
// waiter this Analyser knows about is signaled RUNTIME_ABORTED. It is only
// called for genuine invariant violations — a correct runtime should never
// reach it.
func (a *Analyser) fault(cause error) {
	if a.aborted {
		return
	}
	af := rterrors.NewAnalyzerFault(cause)
	a.rc.Log.Error().Err(af).Msg("analyzer fault, aborting runtime")
	a.aborted = true
	if a.abort != nil {
		a.abort()
	}
	for _, waiters := range a.barriers {
		for _, w := range waiters {
			w.Signal(request.Result{Err: rterrors.ErrRuntimeAborted})
		}
	}
	for _, waiters := range a.endOfApp {
		for _, w := range waiters {
			w.Signal(request.Result{Err: rterrors.ErrRuntimeAborted})
		}
	}
	for _, waiters := range a.mainWaiters {
		for _, w := range waiters {
			w.req.Signal(request.Result{Err: rterrors.ErrRuntimeAborted})
		}
	}
	a.barriers = make(map[string][]*request.Request)
	a.endOfApp = make(map[string][]*request.Request)
	a.mainWaiters = make(map[int64][]*pendingMainAccess)
}
