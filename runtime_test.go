package taskrt

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskrt/internal/dispatch"
	"taskrt/internal/request"
	"taskrt/internal/rterrors"
	"taskrt/internal/runtimectx"
	"taskrt/internal/taskmodel"
)

func succeed(_ context.Context, _ *taskmodel.Task) request.Outcome {
	return request.Outcome{}
}

func testConfig() runtimectx.Config {
	cfg := runtimectx.DefaultConfig()
	cfg.DispatchWorkers = 2
	return cfg
}

func TestEndOfApp_WaitsForAllSubmittedTasks(t *testing.T) {
	rt := New(testConfig(), succeed)
	defer rt.Shutdown()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := rt.SubmitTask(ctx, "app1", taskmodel.Description{MethodOrService: "noop"}, 0)
		require.NoError(t, err)
	}

	failed, err := rt.EndOfApp(ctx, "app1")
	require.NoError(t, err)
	require.False(t, failed)
}

func TestSubmitTask_RejectedAfterEndOfApp(t *testing.T) {
	rt := New(testConfig(), succeed)
	defer rt.Shutdown()
	ctx := context.Background()

	_, err := rt.SubmitTask(ctx, "app1", taskmodel.Description{MethodOrService: "noop"}, 0)
	require.NoError(t, err)

	_, err = rt.EndOfApp(ctx, "app1")
	require.NoError(t, err)

	_, err = rt.SubmitTask(ctx, "app1", taskmodel.Description{MethodOrService: "noop"}, 0)
	require.Error(t, err)
}

func TestBarrier_ReturnsFailedAggregateOnCascade(t *testing.T) {
	fail := func(_ context.Context, tk *taskmodel.Task) request.Outcome {
		if tk.Description.MethodOrService == "boom" {
			return request.Outcome{Failed: true, Reason: "synthetic failure"}
		}
		return request.Outcome{}
	}
	rt := New(testConfig(), fail)
	defer rt.Shutdown()
	ctx := context.Background()

	ref := taskmodel.DataRef{Path: "shared"}
	_, err := rt.SubmitTask(ctx, "app1", taskmodel.Description{
		MethodOrService: "boom",
		Parameters:      []taskmodel.Parameter{{Ref: ref, Type: taskmodel.File, Direction: taskmodel.Out}},
	}, 0)
	require.NoError(t, err)

	_, err = rt.SubmitTask(ctx, "app1", taskmodel.Description{
		MethodOrService: "downstream",
		Parameters:      []taskmodel.Parameter{{Ref: ref, Type: taskmodel.File, Direction: taskmodel.In}},
	}, 0)
	require.NoError(t, err)

	failed, err := rt.Barrier(ctx, "app1")
	require.NoError(t, err)
	require.True(t, failed, "barrier should report the cascaded failure")
}

func TestMainAccess_BlocksUntilProducerFinishes(t *testing.T) {
	release := make(chan struct{})
	slow := func(_ context.Context, tk *taskmodel.Task) request.Outcome {
		if tk.Description.MethodOrService == "producer" {
			<-release
		}
		return request.Outcome{}
	}
	rt := New(testConfig(), slow)
	defer rt.Shutdown()
	ctx := context.Background()

	ref := taskmodel.DataRef{Path: "out.dat"}
	_, err := rt.SubmitTask(ctx, "app1", taskmodel.Description{
		MethodOrService: "producer",
		Parameters:      []taskmodel.Parameter{{Ref: ref, Type: taskmodel.File, Direction: taskmodel.Out}},
	}, 0)
	require.NoError(t, err)

	resultCh := make(chan request.MainAccessResult, 1)
	go func() {
		res, merr := rt.MainAccess(context.Background(), "app1", ref, taskmodel.In)
		require.NoError(t, merr)
		resultCh <- res
	}()

	select {
	case <-resultCh:
		t.Fatalf("main_access returned before the producer finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case res := <-resultCh:
		require.True(t, res.HasData)
	case <-time.After(2 * time.Second):
		t.Fatalf("main_access never unblocked after producer finished")
	}
}

func TestConcurrentGroup_ThenReader_RunsToCompletion(t *testing.T) {
	rt := New(testConfig(), succeed)
	defer rt.Shutdown()
	ctx := context.Background()

	ref := taskmodel.DataRef{Path: "counter"}
	for i := 0; i < 2; i++ {
		_, err := rt.SubmitTask(ctx, "app1", taskmodel.Description{
			MethodOrService: "incr",
			Parameters:      []taskmodel.Parameter{{Ref: ref, Type: taskmodel.File, Direction: taskmodel.Concurrent}},
		}, 0)
		require.NoError(t, err)
	}

	_, err := rt.SubmitTask(ctx, "app1", taskmodel.Description{
		MethodOrService: "reader",
		Parameters:      []taskmodel.Parameter{{Ref: ref, Type: taskmodel.File, Direction: taskmodel.In}},
	}, 0)
	require.NoError(t, err)

	failed, err := rt.EndOfApp(ctx, "app1")
	require.NoError(t, err)
	require.False(t, failed)
}

func TestReplicatedTask_DispatchedOncePerCopy(t *testing.T) {
	var calls int64
	counting := func(_ context.Context, _ *taskmodel.Task) request.Outcome {
		atomic.AddInt64(&calls, 1)
		return request.Outcome{}
	}
	rt := New(testConfig(), counting)
	defer rt.Shutdown()
	ctx := context.Background()

	_, err := rt.SubmitTask(ctx, "app1", taskmodel.Description{
		MethodOrService: "replicated",
		Flags:           taskmodel.Flags{Replicated: true, NumNodes: 3},
	}, 0)
	require.NoError(t, err)

	failed, err := rt.EndOfApp(ctx, "app1")
	require.NoError(t, err)
	require.False(t, failed)
	require.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestBarrier_FallsBackToConfiguredTimeoutWithNoCallerDeadline(t *testing.T) {
	release := make(chan struct{})
	slow := func(_ context.Context, _ *taskmodel.Task) request.Outcome {
		<-release
		return request.Outcome{}
	}
	cfg := testConfig()
	cfg.BarrierTimeout = 20 * time.Millisecond
	rt := New(cfg, slow)
	defer func() {
		close(release)
		rt.Shutdown()
	}()

	_, err := rt.SubmitTask(context.Background(), "app1", taskmodel.Description{MethodOrService: "noop"}, 0)
	require.NoError(t, err)

	_, err = rt.Barrier(context.Background(), "app1")
	require.ErrorIs(t, err, rterrors.ErrTimeout)
}

var _ dispatch.TaskDispatcher = (*dispatch.Harness)(nil)
