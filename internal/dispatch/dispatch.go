// Package dispatch implements the TaskDispatcher boundary: the external
// execution sink the analyzer hands ready tasks to without blocking (§4.4).
// The harness here is the in-tree reference sink used by tests and by any
// embedder that has no real worker fleet to plug in; production callers are
// expected to supply their own TaskDispatcher.
package dispatch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"taskrt/internal/request"
	"taskrt/internal/rtlog"
	"taskrt/internal/rtmetrics"
	"taskrt/internal/taskmodel"

	"github.com/rs/zerolog"
)

// TaskDispatcher is what the analyzer hands ready tasks to, exactly once
// per task, when it enters TO_EXECUTE (§4.4). Dispatch must not block on
// the task's execution; it only has to accept the handoff. The returned
// copies count is the number of TASK_ENDED reports the analyzer should
// expect for this task before treating it as complete — per design note
// §9's resolution of the executionCount open question, TD (not the
// submitter) is authoritative on how many copies a replicated task runs.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, t *taskmodel.Task) (copies int, err error)
}

// EndedReporter is the narrow slice of AccessProcessor the harness needs,
// kept as an interface here so this package does not have to import
// internal/access just to report completions.
type EndedReporter interface {
	TaskEnded(ctx context.Context, taskID int64, outcome request.Outcome) error
}

// Runner performs the actual work for a single dispatched task. The
// reference harness treats it as opaque; real embedders supply one that
// talks to a worker fleet, a subprocess, or a remote executor.
type Runner func(ctx context.Context, t *taskmodel.Task) request.Outcome

// Harness is a fixed-size worker pool built on errgroup, matching the
// teacher's executor concurrency shape but driving Runner/EndedReporter
// instead of a build step.
type Harness struct {
	jobs    chan *taskmodel.Task
	run     Runner
	ended   EndedReporter
	metrics *rtmetrics.Registry
	log     zerolog.Logger

	g       *errgroup.Group
	gctx    context.Context
	closeMu sync.Mutex
	closed  bool
}

// NewHarness starts workers goroutines, each pulling from an internal job
// queue until Close is called.
func NewHarness(ctx context.Context, workers int, queueCapacity int, ended EndedReporter, run Runner, metrics *rtmetrics.Registry) *Harness {
	g, gctx := errgroup.WithContext(ctx)
	h := &Harness{
		jobs:    make(chan *taskmodel.Task, queueCapacity),
		run:     run,
		ended:   ended,
		metrics: metrics,
		log:     rtlog.New("dispatcher-harness", nil),
		g:       g,
		gctx:    gctx,
	}
	for i := 0; i < workers; i++ {
		g.Go(h.worker)
	}
	return h
}

func (h *Harness) worker() error {
	for t := range h.jobs {
		h.metrics.TasksInFlight.Inc()
		outcome := h.run(h.gctx, t)
		h.metrics.TasksInFlight.Dec()
		if outcome.Failed {
			// TasksFailed is incremented by the analyzer's cascade-failure
			// path, which is the only place a task is actually marked
			// FAILED and knows the full set of dependents that join it.
			h.log.Warn().Int64("task_id", t.ID).Str("reason", outcome.Reason).Msg("task execution failed")
		}
		if err := h.ended.TaskEnded(h.gctx, t.ID, outcome); err != nil {
			h.log.Error().Err(err).Int64("task_id", t.ID).Msg("failed to report task end")
		}
	}
	return nil
}

// Dispatch enqueues t for execution, once per copy. It blocks only long
// enough to hand each copy to the internal queue (or until ctx is done),
// never for the execution itself. The reference harness decides the copy
// count from the task's own Replicated/NumNodes flags; a real TD backed by
// an actual worker fleet might instead derive it from fleet size or a
// scheduling policy.
func (h *Harness) Dispatch(ctx context.Context, t *taskmodel.Task) (int, error) {
	copies := 1
	if t.Description.Flags.Replicated && t.Description.Flags.NumNodes > 1 {
		copies = t.Description.Flags.NumNodes
	}
	for i := 0; i < copies; i++ {
		select {
		case h.jobs <- t:
		case <-ctx.Done():
			return i, ctx.Err()
		}
	}
	return copies, nil
}

// Close stops accepting new work and waits for in-flight executions to
// drain.
func (h *Harness) Close() error {
	h.closeMu.Lock()
	if h.closed {
		h.closeMu.Unlock()
		return nil
	}
	h.closed = true
	close(h.jobs)
	h.closeMu.Unlock()
	return h.g.Wait()
}
