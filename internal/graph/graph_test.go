package graph

import (
	"testing"

	"taskrt/internal/taskmodel"
)

func mustTask(id int64) *taskmodel.Task {
	return taskmodel.NewTask(id, "app-1", taskmodel.Description{MethodOrService: "m"}, 0)
}

func TestAddEdge_Symmetry(t *testing.T) {
	g := New()
	a, b := mustTask(1), mustTask(2)
	g.AddTask(a)
	g.AddTask(b)

	if err := g.AddEdge(1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := g.Successors(1); len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected [2], got %v", got)
	}
	if got := g.Predecessors(2); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected [1], got %v", got)
	}
}

func TestAddEdge_UnknownTask(t *testing.T) {
	g := New()
	g.AddTask(mustTask(1))
	if err := g.AddEdge(1, 99); err == nil {
		t.Fatalf("expected error for unknown successor")
	}
	if err := g.AddEdge(99, 1); err == nil {
		t.Fatalf("expected error for unknown predecessor")
	}
}

func TestAddEdge_SelfLoopRejected(t *testing.T) {
	g := New()
	g.AddTask(mustTask(1))
	if err := g.AddEdge(1, 1); err == nil {
		t.Fatalf("expected self-dependency error")
	}
}

func TestReady_NoPredecessors(t *testing.T) {
	g := New()
	g.AddTask(mustTask(1))
	if !g.Ready(1) {
		t.Fatalf("task with no predecessors must be ready")
	}
}

func TestReady_BlockedByPredecessor(t *testing.T) {
	g := New()
	g.AddTask(mustTask(1))
	g.AddTask(mustTask(2))
	if err := g.AddEdge(1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Ready(2) {
		t.Fatalf("task 2 must not be ready while 1 is unfinished")
	}

	nowEmpty, err := g.ReleasePredecessor(2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !nowEmpty {
		t.Fatalf("expected predecessor set to become empty")
	}
	if !g.Ready(2) {
		t.Fatalf("task 2 must be ready once its only predecessor is released")
	}
}

func TestReady_EnforcingTask(t *testing.T) {
	g := New()
	enforcer := mustTask(1)
	dependent := taskmodel.NewTask(2, "app-1", taskmodel.Description{}, 1)
	g.AddTask(enforcer)
	g.AddTask(dependent)
	if err := g.AddEdge(1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Ready(2) {
		t.Fatalf("task 2 must not be ready: predecessor unfinished")
	}
	if _, err := g.ReleasePredecessor(2, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Data predecessor released, but enforcing task 1 hasn't finished yet.
	if g.Ready(2) {
		t.Fatalf("task 2 must not be ready: enforcing task not finished")
	}

	enforcer.State = taskmodel.Finished
	if !g.Ready(2) {
		t.Fatalf("task 2 must be ready once enforcing task finished")
	}
}

func TestReclaimAndRemove(t *testing.T) {
	g := New()
	a, b := mustTask(1), mustTask(2)
	g.AddTask(a)
	g.AddTask(b)
	if err := g.AddEdge(1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Reclaimable(1) {
		t.Fatalf("task 1 must not be reclaimable: not terminal and has a successor")
	}

	a.State = taskmodel.Finished
	if g.Reclaimable(1) {
		t.Fatalf("task 1 must not be reclaimable: successor 2 still references it")
	}

	g.DetachSuccessor(1, 2)
	if !g.Reclaimable(1) {
		t.Fatalf("task 1 must be reclaimable: terminal with no successors")
	}
	g.Remove(1)
	if g.Contains(1) {
		t.Fatalf("task 1 should have been removed")
	}
}

func TestDownstreamReachable_Deterministic(t *testing.T) {
	g := New()
	for _, id := range []int64{1, 2, 3, 4} {
		g.AddTask(mustTask(id))
	}
	// Diamond: 1 -> 2, 1 -> 3, 2 -> 4, 3 -> 4
	for _, e := range []Edge{{1, 2}, {1, 3}, {2, 4}, {3, 4}} {
		if err := g.AddEdge(e.From, e.To); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got := g.DownstreamReachable(1)
	want := []int64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
