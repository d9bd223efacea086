// Package graph implements the task dependency graph: an id-keyed,
// single-writer container of predecessor/successor edges and task state.
//
// It deliberately holds no lock of its own — every exported method assumes
// it is called from the single TaskAnalyser goroutine that owns it (§5 of
// the spec this implements). Concurrent access from any other goroutine is a
// caller bug, not something this package defends against.
package graph

import (
	"sort"

	"taskrt/internal/taskmodel"
)

// Graph is the mutable task dependency graph.
//
// Tasks are reclaimed by removing their id from nodes, never by following
// (or waiting on) a pointer graph — this is what makes cyclic
// predecessor/successor bookkeeping safe to discard (design note §9).
type Graph struct {
	nodes map[int64]*node
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[int64]*node)}
}

// AddTask registers a new task. The task must not already be present.
func (g *Graph) AddTask(t *taskmodel.Task) {
	g.nodes[t.ID] = newNode(t)
}

// Task returns the task for id, if still present.
func (g *Graph) Task(id int64) (*taskmodel.Task, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.task, true
}

// Contains reports whether id is currently tracked.
func (g *Graph) Contains(id int64) bool {
	_, ok := g.nodes[id]
	return ok
}

// AddEdge records that to depends on from: from must finish before to can
// enter ToExecute. It enforces I2 by constructing both directions together;
// there is no way to add one side without the other.
//
// Adding an edge where from is already terminal records nothing on either
// side and returns nil: the dependency is already satisfied. The
// TaskAnalyser can pass such a producer, since a datum's writer stays its
// writer after finishing; producers already removed from the graph are
// skipped by the analyzer before it calls AddEdge.
func (g *Graph) AddEdge(from, to int64) error {
	fn, ok := g.nodes[from]
	if !ok {
		return unknownTaskf("edge from unknown task %d", from)
	}
	tn, ok := g.nodes[to]
	if !ok {
		return unknownTaskf("edge to unknown task %d", to)
	}
	if from == to {
		return invariantf("self-dependency on task %d", from)
	}
	if fn.task.State.IsTerminal() {
		// Nothing to wait on: the producer already finished (e.g. a late
		// reader joining after the group closed). No edge needed.
		return nil
	}
	fn.successors[to] = struct{}{}
	tn.predecessors[from] = struct{}{}
	return nil
}

// Predecessors returns the ids to still waiting on, in ascending order.
func (g *Graph) Predecessors(id int64) []int64 {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return sortedKeys(n.predecessors)
}

// Successors returns the dependent ids, in ascending order.
func (g *Graph) Successors(id int64) []int64 {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return sortedKeys(n.successors)
}

// Ready reports whether id has zero unfinished predecessors and, if it
// carries an enforcing task, that task has finished (P4).
func (g *Graph) Ready(id int64) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	if len(n.predecessors) != 0 {
		return false
	}
	if n.task.Enforcing != 0 {
		if en, ok := g.nodes[n.task.Enforcing]; ok {
			return en.task.State == taskmodel.Finished
		}
		// Enforcing task already reclaimed: it must have finished to be
		// reclaimable, so the constraint is satisfied.
	}
	return true
}

// ReleasePredecessor removes from from to's waiting set, returning true if
// to has no remaining predecessors (i.e. it just became ready, modulo the
// enforcing-task check the caller must still apply via Ready).
func (g *Graph) ReleasePredecessor(to, from int64) (nowEmpty bool, err error) {
	tn, ok := g.nodes[to]
	if !ok {
		return false, unknownTaskf("release predecessor on unknown task %d", to)
	}
	delete(tn.predecessors, from)
	return len(tn.predecessors) == 0, nil
}

// DetachSuccessor removes to from from's successor set. Called once a
// successor has observed from's completion, so from can eventually be
// reclaimed.
func (g *Graph) DetachSuccessor(from, to int64) {
	if fn, ok := g.nodes[from]; ok {
		delete(fn.successors, to)
	}
}

// Reclaimable reports whether id is terminal and has no successors still
// referencing it. Enforcing relationships are not graph edges; callers
// drain those separately before checking this.
func (g *Graph) Reclaimable(id int64) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	return n.task.State.IsTerminal() && len(n.successors) == 0
}

// Remove deletes id from the graph unconditionally. Callers should check
// Reclaimable first unless force-removing (e.g. on runtime abort).
func (g *Graph) Remove(id int64) {
	delete(g.nodes, id)
}

// Len returns the number of tracked tasks.
func (g *Graph) Len() int { return len(g.nodes) }

// Ids returns all tracked task ids in ascending order.
func (g *Graph) Ids() []int64 {
	out := make([]int64, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedKeys(m map[int64]struct{}) []int64 {
	if len(m) == 0 {
		return nil
	}
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
