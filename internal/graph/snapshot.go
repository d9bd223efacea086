package graph

import "taskrt/internal/taskmodel"

// NodeSnapshot is a point-in-time, copy-safe view of one task suitable for
// an external DOT renderer (out of scope here — see §6). Colors/shapes for
// replicated/service tasks are derived by the renderer from Flags; this
// package only carries the facts.
type NodeSnapshot struct {
	ID           int64
	State        taskmodel.State
	AppID        string
	Flags        taskmodel.Flags
	Predecessors []int64
	Successors   []int64
}

// Snapshot returns a deterministic, ascending-by-id copy of the current
// graph state. It allocates fresh slices so callers may retain it past the
// next mutation.
func (g *Graph) Snapshot() []NodeSnapshot {
	ids := g.Ids()
	out := make([]NodeSnapshot, 0, len(ids))
	for _, id := range ids {
		n := g.nodes[id]
		out = append(out, NodeSnapshot{
			ID:           id,
			State:        n.task.State,
			AppID:        n.task.AppID,
			Flags:        n.task.Description.Flags,
			Predecessors: g.Predecessors(id),
			Successors:   g.Successors(id),
		})
	}
	return out
}
