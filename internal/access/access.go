// Package access implements the AccessProcessor: the front door every
// caller submits work and data accesses through. It owns the request queue
// and the set of applications that have called end_of_app — all other
// mutable runtime state lives behind the analyzer's single-writer
// goroutine, per design note §9.
package access

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"taskrt/internal/request"
	"taskrt/internal/rterrors"
	"taskrt/internal/rtmetrics"
	"taskrt/internal/taskmodel"
)

// translateWaitErr maps a caller-supplied context's deadline expiry to the
// TIMEOUT error kind from §7; explicit cancellation is passed through
// unchanged since it is not a deadline.
func translateWaitErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return rterrors.ErrTimeout
	}
	return err
}

// AccessProcessor is the only component application goroutines touch
// directly. Every method either enqueues a fire-and-forget Request or
// enqueues a blocking one and waits on its completion signal.
type AccessProcessor struct {
	queue          chan *request.Request
	ids            *taskmodel.IDAllocator
	metrics        *rtmetrics.Registry
	log            zerolog.Logger
	barrierTimeout time.Duration

	closeOnce sync.Once
	closed    atomic.Bool

	// closedApps lets submit_task fail fast with SubmissionError once
	// end_of_app has been called for an application (S6), without a
	// round-trip through the analyzer — it is a narrow, AP-local view, not
	// a copy of the application's full live-task state.
	closedApps sync.Map // map[string]struct{}
}

// New constructs an AccessProcessor with the given queue capacity.
// barrierTimeout is the deadline applied to a Barrier/EndOfApp wait when the
// caller's own context carries none; zero disables the fallback and waits
// indefinitely. The returned Queue() channel must be drained by exactly one
// analyzer goroutine (see internal/analyzer).
func New(queueCapacity int, ids *taskmodel.IDAllocator, metrics *rtmetrics.Registry, log zerolog.Logger, barrierTimeout time.Duration) *AccessProcessor {
	return &AccessProcessor{
		queue:          make(chan *request.Request, queueCapacity),
		ids:            ids,
		metrics:        metrics,
		log:            log,
		barrierTimeout: barrierTimeout,
	}
}

// withDefaultDeadline applies ap.barrierTimeout to ctx when the caller's
// context carries no deadline of its own (runtimectx.Config.BarrierTimeout).
func (ap *AccessProcessor) withDefaultDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if ap.barrierTimeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, ap.barrierTimeout)
}

// Queue exposes the consumption side for the analyzer. Nothing else should
// read from it.
func (ap *AccessProcessor) Queue() <-chan *request.Request { return ap.queue }

func (ap *AccessProcessor) enqueue(ctx context.Context, r *request.Request) error {
	if ap.closed.Load() {
		return rterrors.ErrQueueClosed
	}
	select {
	case ap.queue <- r:
		ap.metrics.QueueDepth.Set(float64(len(ap.queue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitTask allocates a task id synchronously and hands the new task off
// to the analyzer for graph insertion. It never blocks on analysis.
func (ap *AccessProcessor) SubmitTask(ctx context.Context, appID string, desc taskmodel.Description, enforcing int64) (int64, error) {
	if _, closed := ap.closedApps.Load(appID); closed {
		return 0, rterrors.NewSubmissionError(rterrors.ErrUnknownApp, "application %q already called end_of_app", appID)
	}
	for i, p := range desc.Parameters {
		if p.Type == taskmodel.File && p.Ref.Path == "" {
			return 0, rterrors.NewSubmissionError(rterrors.ErrMalformedParameters, "parameter %d is a file with no path", i)
		}
	}
	id := ap.ids.Next()
	r := request.NewFireAndForget(request.NewTask)
	r.NewTask = &request.NewTaskPayload{TaskID: id, AppID: appID, Desc: desc, Enforcing: enforcing}
	if err := ap.enqueue(ctx, r); err != nil {
		return 0, err
	}
	ap.log.Debug().Int64("task_id", id).Str("app", appID).Str("method", desc.MethodOrService).Msg("submit_task")
	return id, nil
}

// MainAccess blocks until the analyzer has resolved the producer (if any)
// of ref for the given direction, implementing the main-thread half of
// §4.2's access table.
func (ap *AccessProcessor) MainAccess(ctx context.Context, appID string, ref taskmodel.DataRef, dir taskmodel.Direction) (request.MainAccessResult, error) {
	r := request.NewBlocking(request.MainAccess)
	r.MainAccess = &request.MainAccessPayload{AppID: appID, Ref: ref, Direction: dir}
	if err := ap.enqueue(ctx, r); err != nil {
		return request.MainAccessResult{}, translateWaitErr(err)
	}
	res, err := r.Wait(ctx)
	if err != nil {
		return request.MainAccessResult{}, translateWaitErr(err)
	}
	if res.Err != nil {
		return request.MainAccessResult{}, res.Err
	}
	out, _ := res.Value.(request.MainAccessResult)
	return out, nil
}

// TaskEnded is called by the dispatcher harness, never by application
// code. Fire-and-forget: the dispatcher does not wait on cascade effects.
func (ap *AccessProcessor) TaskEnded(ctx context.Context, taskID int64, outcome request.Outcome) error {
	r := request.NewFireAndForget(request.TaskEnded)
	r.TaskEnded = &request.TaskEndedPayload{TaskID: taskID, Outcome: outcome}
	return ap.enqueue(ctx, r)
}

// Barrier blocks the caller until appID has no live task left: every task
// it submitted before this call has reached a terminal state, and so has
// every task it submitted while the barrier was waiting.
func (ap *AccessProcessor) Barrier(ctx context.Context, appID string) (bool, error) {
	ctx, cancel := ap.withDefaultDeadline(ctx)
	defer cancel()

	r := request.NewBlocking(request.Barrier)
	r.Barrier = &request.BarrierPayload{AppID: appID}
	if err := ap.enqueue(ctx, r); err != nil {
		return false, translateWaitErr(err)
	}
	res, err := r.Wait(ctx)
	if err != nil {
		return false, translateWaitErr(err)
	}
	if res.Err != nil {
		return false, res.Err
	}
	out, _ := res.Value.(request.BarrierResult)
	return out.Failed, nil
}

// EndOfApp marks appID as done submitting tasks and blocks until its
// remaining live tasks finish, mirroring Barrier's aggregate.
func (ap *AccessProcessor) EndOfApp(ctx context.Context, appID string) (bool, error) {
	ap.closedApps.Store(appID, struct{}{})

	ctx, cancel := ap.withDefaultDeadline(ctx)
	defer cancel()

	r := request.NewBlocking(request.EndOfApp)
	r.EndOfApp = &request.EndOfAppPayload{AppID: appID}
	if err := ap.enqueue(ctx, r); err != nil {
		return false, translateWaitErr(err)
	}
	res, err := r.Wait(ctx)
	if err != nil {
		return false, translateWaitErr(err)
	}
	if res.Err != nil {
		return false, res.Err
	}
	out, _ := res.Value.(request.EndOfAppResult)
	return out.Failed, nil
}

// Snapshot returns the current graph view for observability (§6).
func (ap *AccessProcessor) Snapshot(ctx context.Context) (any, error) {
	r := request.NewBlocking(request.Snapshot)
	if err := ap.enqueue(ctx, r); err != nil {
		return nil, translateWaitErr(err)
	}
	res, err := r.Wait(ctx)
	if err != nil {
		return nil, translateWaitErr(err)
	}
	return res.Value, res.Err
}

// Shutdown closes the queue. Safe to call more than once; only the first
// call has effect. The analyzer observes the closed channel, drains it,
// and signals every remaining waiter with ErrRuntimeAborted.
func (ap *AccessProcessor) Shutdown() {
	ap.closeOnce.Do(func() {
		ap.closed.Store(true)
		close(ap.queue)
	})
}
