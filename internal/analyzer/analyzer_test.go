package analyzer

import (
	"context"
	"testing"
	"time"

	"taskrt/internal/request"
	"taskrt/internal/runtimectx"
	"taskrt/internal/taskmodel"
)

// recordingDispatcher captures dispatch order instead of running anything;
// tests drive completion explicitly via handleTaskEnded.
type recordingDispatcher struct {
	dispatched []int64
}

func (d *recordingDispatcher) Dispatch(_ context.Context, t *taskmodel.Task) (int, error) {
	d.dispatched = append(d.dispatched, t.ID)
	return 1, nil
}

func newTestAnalyser() (*Analyser, *recordingDispatcher) {
	rc := runtimectx.New(runtimectx.DefaultConfig(), "ta-test")
	rd := &recordingDispatcher{}
	a := New(rc, make(chan *request.Request), rd, func() {})
	return a, rd
}

func fileParam(path string, dir taskmodel.Direction) taskmodel.Parameter {
	return taskmodel.Parameter{Ref: taskmodel.DataRef{Path: path}, Type: taskmodel.File, Direction: dir}
}

func submit(t *testing.T, a *Analyser, id int64, appID string, params []taskmodel.Parameter, enforcing int64, flags taskmodel.Flags) {
	t.Helper()
	a.handleNewTask(&request.NewTaskPayload{
		TaskID:    id,
		AppID:     appID,
		Enforcing: enforcing,
		Desc:      taskmodel.Description{MethodOrService: "m", Parameters: params, Flags: flags},
	})
}

func TestDiamondDependency_ReadyOrder(t *testing.T) {
	a, rd := newTestAnalyser()
	ctx := context.Background()

	submit(t, a, 1, "app", []taskmodel.Parameter{fileParam("f1", taskmodel.Out)}, 0, taskmodel.Flags{})
	a.drainReady(ctx)
	submit(t, a, 2, "app", []taskmodel.Parameter{fileParam("f1", taskmodel.In), fileParam("f2", taskmodel.Out)}, 0, taskmodel.Flags{})
	submit(t, a, 3, "app", []taskmodel.Parameter{fileParam("f1", taskmodel.In), fileParam("f3", taskmodel.Out)}, 0, taskmodel.Flags{})
	submit(t, a, 4, "app", []taskmodel.Parameter{fileParam("f2", taskmodel.In), fileParam("f3", taskmodel.In)}, 0, taskmodel.Flags{})

	if got := a.rc.Graph.Predecessors(4); len(got) != 2 {
		t.Fatalf("task 4 predecessors = %v, want 2 entries", got)
	}
	if rd.dispatched[0] != 1 {
		t.Fatalf("task 1 should have dispatched first, got %v", rd.dispatched)
	}

	a.handleTaskEnded(&request.TaskEndedPayload{TaskID: 1})
	a.drainReady(ctx)
	if len(rd.dispatched) != 3 {
		t.Fatalf("tasks 2 and 3 should now be ready: dispatched=%v", rd.dispatched)
	}

	a.handleTaskEnded(&request.TaskEndedPayload{TaskID: 2})
	if got := a.rc.Graph.Predecessors(4); len(got) != 1 {
		t.Fatalf("task 4 should have 1 remaining predecessor, got %v", got)
	}
	a.handleTaskEnded(&request.TaskEndedPayload{TaskID: 3})
	a.drainReady(ctx)
	if len(rd.dispatched) != 4 || rd.dispatched[3] != 4 {
		t.Fatalf("task 4 should have dispatched last: %v", rd.dispatched)
	}
}

func TestPrioritaryDispatchOrdersAheadOfFIFO(t *testing.T) {
	a, rd := newTestAnalyser()
	ctx := context.Background()

	submit(t, a, 1, "app", nil, 0, taskmodel.Flags{})
	submit(t, a, 2, "app", nil, 0, taskmodel.Flags{})
	submit(t, a, 3, "app", nil, 0, taskmodel.Flags{Prioritary: true})
	a.drainReady(ctx)

	want := []int64{3, 1, 2}
	if len(rd.dispatched) != 3 || rd.dispatched[0] != want[0] || rd.dispatched[1] != want[1] || rd.dispatched[2] != want[2] {
		t.Fatalf("dispatch order = %v, want %v", rd.dispatched, want)
	}
}

func TestCascadeFailure_PropagatesToDependents(t *testing.T) {
	a, _ := newTestAnalyser()
	ctx := context.Background()

	submit(t, a, 1, "app", []taskmodel.Parameter{fileParam("f1", taskmodel.Out)}, 0, taskmodel.Flags{})
	submit(t, a, 2, "app", []taskmodel.Parameter{fileParam("f1", taskmodel.In), fileParam("f2", taskmodel.Out)}, 0, taskmodel.Flags{})
	submit(t, a, 3, "app", []taskmodel.Parameter{fileParam("f2", taskmodel.In)}, 0, taskmodel.Flags{})
	a.drainReady(ctx)

	a.handleTaskEnded(&request.TaskEndedPayload{TaskID: 1, Outcome: request.Outcome{Failed: true, Reason: "boom"}})
	a.drainReady(ctx)

	t2, ok := a.rc.Graph.Task(2)
	if !ok || t2.State != taskmodel.Failed {
		t.Fatalf("task 2 should have cascaded to FAILED, got %v ok=%v", t2, ok)
	}
	t3, ok := a.rc.Graph.Task(3)
	if !ok || t3.State != taskmodel.Failed {
		t.Fatalf("task 3 should have cascaded to FAILED, got %v ok=%v", t3, ok)
	}

	app := a.rc.App("app")
	if !app.Failed {
		t.Fatalf("application should be marked failed")
	}
	if !app.Quiescent() {
		t.Fatalf("application should have no live tasks after full cascade, live=%v", app.Live)
	}
}

func TestEnforcingTask_BlocksReadinessUntilFinished(t *testing.T) {
	a, rd := newTestAnalyser()
	ctx := context.Background()

	submit(t, a, 1, "app", nil, 0, taskmodel.Flags{})
	submit(t, a, 2, "app", nil, 1, taskmodel.Flags{})
	a.drainReady(ctx)

	if len(rd.dispatched) != 1 {
		t.Fatalf("task 2 should not be ready yet: dispatched=%v", rd.dispatched)
	}

	a.handleTaskEnded(&request.TaskEndedPayload{TaskID: 1})
	a.drainReady(ctx)
	if len(rd.dispatched) != 2 || rd.dispatched[1] != 2 {
		t.Fatalf("task 2 should dispatch once its enforcing task finishes: %v", rd.dispatched)
	}
}

func TestBarrierFiresOnceApplicationQuiescent(t *testing.T) {
	a, _ := newTestAnalyser()
	ctx := context.Background()

	submit(t, a, 1, "app", nil, 0, taskmodel.Flags{})
	a.drainReady(ctx)

	barrierReq := request.NewBlocking(request.Barrier)
	barrierReq.Barrier = &request.BarrierPayload{AppID: "app"}
	a.handleBarrier(barrierReq)

	shortCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := barrierReq.Wait(shortCtx); err == nil {
		t.Fatalf("barrier should not have fired before the task finished")
	}

	a.handleTaskEnded(&request.TaskEndedPayload{TaskID: 1})

	res, err := barrierReq.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
}
