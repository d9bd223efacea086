package analyzer

import (
	"container/heap"
	"context"

	"taskrt/internal/request"
	"taskrt/internal/taskmodel"
)

// readyEntry is one task waiting for its handoff to the dispatcher.
// Prioritary tasks always sort ahead of non-prioritary ones; within the
// same tier, lower ids (earlier submission order) go first.
type readyEntry struct {
	id         int64
	prioritary bool
}

type readyHeap []readyEntry

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if h[i].prioritary != h[j].prioritary {
		return h[i].prioritary
	}
	return h[i].id < h[j].id
}
func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x any)   { *h = append(*h, x.(readyEntry)) }
func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (a *Analyser) pushReady(t *taskmodel.Task) {
	heap.Push(&a.ready, readyEntry{id: t.ID, prioritary: t.Description.Flags.Prioritary})
}

// drainReady dispatches every task currently sitting at the head of the
// ready heap, prioritary tier first, lowest id within a tier next.
func (a *Analyser) drainReady(ctx context.Context) {
	for a.ready.Len() > 0 {
		e := heap.Pop(&a.ready).(readyEntry)
		t, ok := a.rc.Graph.Task(e.id)
		if !ok || t.State != taskmodel.ToAnalyse {
			continue
		}
		a.dispatchTask(ctx, t)
	}
}

// dispatchTask hands t to the external dispatcher exactly once (§4.4).
// PendingExecution is set from the copies count TD reports back, tracking
// how many TASK_ENDED reports are still outstanding before completion
// logic runs (design note §9's resolution of the executionCount question).
func (a *Analyser) dispatchTask(ctx context.Context, t *taskmodel.Task) {
	t.State = taskmodel.ToExecute

	copies, err := a.td.Dispatch(ctx, t)
	if copies <= 0 {
		copies = 1
	}
	t.PendingExecution = int32(copies)

	if err != nil {
		a.rc.Log.Error().Err(err).Int64("task_id", t.ID).Msg("dispatch handoff failed")
		a.handleTaskEnded(&request.TaskEndedPayload{
			TaskID:  t.ID,
			Outcome: request.Outcome{Failed: true, Reason: err.Error()},
		})
	}
}
