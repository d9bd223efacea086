package graph

import "container/heap"

// int64MinHeap orders task ids ascending, giving cascade traversal a
// deterministic visitation order independent of map iteration — the same
// technique the upstream dag engine uses for its topological and failure
// traversals.
type int64MinHeap []int64

func (h int64MinHeap) Len() int            { return len(h) }
func (h int64MinHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h int64MinHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *int64MinHeap) Push(x any)         { *h = append(*h, x.(int64)) }
func (h *int64MinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// DownstreamReachable returns every id transitively reachable from start via
// successor edges (excluding start). Each step visits the smallest id on the
// current frontier, so the order is deterministic; it is not sorted overall
// (with edges 1->5 and 5->2, DownstreamReachable(1) is [5 2]).
func (g *Graph) DownstreamReachable(start int64) []int64 {
	n, ok := g.nodes[start]
	if !ok {
		return nil
	}

	visited := map[int64]struct{}{start: {}}
	hq := &int64MinHeap{}
	heap.Init(hq)
	for s := range n.successors {
		heap.Push(hq, s)
	}

	var out []int64
	for hq.Len() > 0 {
		u := heap.Pop(hq).(int64)
		if _, seen := visited[u]; seen {
			continue
		}
		visited[u] = struct{}{}
		out = append(out, u)
		if un, ok := g.nodes[u]; ok {
			for s := range un.successors {
				if _, seen := visited[s]; !seen {
					heap.Push(hq, s)
				}
			}
		}
	}
	return out
}
