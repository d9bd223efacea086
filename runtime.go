// Package taskrt wires the AccessProcessor, TaskAnalyser and TaskDispatcher
// together into a single embeddable runtime. Runtime always uses the
// in-tree reference Harness as its execution sink; the pieces in
// internal/access, internal/analyzer and internal/dispatch can be wired to
// another TaskDispatcher only from code inside this module, since Go does
// not allow other modules to import internal packages.
package taskrt

import (
	"context"

	"taskrt/internal/access"
	"taskrt/internal/analyzer"
	"taskrt/internal/dispatch"
	"taskrt/internal/request"
	"taskrt/internal/rtlog"
	"taskrt/internal/runtimectx"
	"taskrt/internal/taskmodel"
)

// Runtime is a running AP/TA/TD triple sharing one RuntimeContext.
type Runtime struct {
	ap       *access.AccessProcessor
	rc       *runtimectx.Context
	harness  *dispatch.Harness
	cancel   context.CancelFunc
	analyzed chan struct{}
}

// New constructs and starts a Runtime using the in-tree reference
// dispatcher harness, driven by run for every dispatched task.
func New(cfg runtimectx.Config, run dispatch.Runner) *Runtime {
	rc := runtimectx.New(cfg, "ta")
	ap := access.New(cfg.QueueCapacity, rc.IDs, rc.Metrics, rtlog.New("ap", nil), cfg.BarrierTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	harness := dispatch.NewHarness(ctx, cfg.DispatchWorkers, cfg.DispatchQueueCapacity, ap, run, rc.Metrics)
	an := analyzer.New(rc, ap.Queue(), harness, ap.Shutdown)

	done := make(chan struct{})
	go func() {
		an.Run(ctx)
		close(done)
	}()

	return &Runtime{ap: ap, rc: rc, harness: harness, cancel: cancel, analyzed: done}
}

// SubmitTask registers a task and returns its allocated id immediately.
func (r *Runtime) SubmitTask(ctx context.Context, appID string, desc taskmodel.Description, enforcing int64) (int64, error) {
	return r.ap.SubmitTask(ctx, appID, desc, enforcing)
}

// MainAccess performs a main-thread access to ref, blocking until its
// producer (if any) has finished.
func (r *Runtime) MainAccess(ctx context.Context, appID string, ref taskmodel.DataRef, dir taskmodel.Direction) (request.MainAccessResult, error) {
	return r.ap.MainAccess(ctx, appID, ref, dir)
}

// Barrier blocks until appID has no live task left, including tasks it
// submits while the barrier is waiting.
func (r *Runtime) Barrier(ctx context.Context, appID string) (bool, error) {
	return r.ap.Barrier(ctx, appID)
}

// EndOfApp marks appID done submitting and blocks until its remaining
// tasks finish.
func (r *Runtime) EndOfApp(ctx context.Context, appID string) (bool, error) {
	return r.ap.EndOfApp(ctx, appID)
}

// Snapshot returns the current dependency graph view for observability.
func (r *Runtime) Snapshot(ctx context.Context) (any, error) {
	return r.ap.Snapshot(ctx)
}

// Shutdown stops accepting new requests, drains the dispatcher harness,
// and stops the analyzer goroutine.
func (r *Runtime) Shutdown() error {
	r.ap.Shutdown()
	err := r.harness.Close()
	r.cancel()
	<-r.analyzed
	return err
}
