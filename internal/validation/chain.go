package validation

import (
	"fmt"
	"sort"

	"github.com/rendis/flowgpt/pkg/schema"
)

// Link is a directed edge between two nodes of one pipeline.
type Link struct {
	Source int64
	Target int64
}

// CheckEdge reports whether candidate can join existing without breaking the
// chain shape of a pipeline: no self-loops, no duplicates, at most one
// successor and one predecessor per node, and no cycles. A pipeline under
// construction may still consist of several disjoint fragments.
func CheckEdge(existing []Link, candidate Link) error {
	if candidate.Source == candidate.Target {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"edge cannot connect node %d to itself", candidate.Source)
	}

	next := make(map[int64]int64, len(existing))
	for _, l := range existing {
		switch {
		case l == candidate:
			return schema.NewErrorf(schema.ErrCodeConflict,
				"edge %d -> %d already exists", l.Source, l.Target)
		case l.Source == candidate.Source:
			return schema.NewErrorf(schema.ErrCodeConflict,
				"node %d already continues to node %d", l.Source, l.Target)
		case l.Target == candidate.Target:
			return schema.NewErrorf(schema.ErrCodeConflict,
				"node %d is already reached from node %d", l.Target, l.Source)
		}
		next[l.Source] = l.Target
	}

	// Every node has at most one successor, so following them from the
	// candidate's target either ends or comes back to its source.
	for cur, hops := candidate.Target, 0; hops <= len(existing); hops++ {
		n, ok := next[cur]
		if !ok {
			return nil
		}
		if n == candidate.Source {
			return schema.NewErrorf(schema.ErrCodeCycleDetected,
				"edge %d -> %d would close a cycle", candidate.Source, candidate.Target)
		}
		cur = n
	}
	return nil
}

// ValidateChain checks that links describe exactly one simple path: a cycle,
// a branch (a node with two successors or predecessors) or a fragment not
// reachable from the start node is an error.
func ValidateChain(links []Link) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if len(links) == 0 {
		result.AddError("edges", schema.ErrCodeValidation, "pipeline has no edges")
		return result
	}

	nodes := make(map[int64]bool)
	succ := make(map[int64][]int64)
	inDegree := make(map[int64]int)
	for _, l := range links {
		nodes[l.Source] = true
		nodes[l.Target] = true
		succ[l.Source] = append(succ[l.Source], l.Target)
		inDegree[l.Target]++
	}

	ids := sortedIDs(nodes)
	for _, id := range ids {
		if n := len(succ[id]); n > 1 {
			result.AddError(fmt.Sprintf("nodes[%d]", id), schema.ErrCodeValidation,
				fmt.Sprintf("node %d has %d outgoing edges", id, n))
		}
		if n := inDegree[id]; n > 1 {
			result.AddError(fmt.Sprintf("nodes[%d]", id), schema.ErrCodeValidation,
				fmt.Sprintf("node %d has %d incoming edges", id, n))
		}
	}

	// Kahn's algorithm for cycle detection.
	remaining := make(map[int64]int, len(ids))
	queue := make([]int64, 0, len(ids))
	for _, id := range ids {
		remaining[id] = inDegree[id]
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	roots := append([]int64(nil), queue...)

	visited := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited++
		for _, t := range succ[node] {
			remaining[t]--
			if remaining[t] == 0 {
				queue = append(queue, t)
			}
		}
	}
	if visited != len(ids) {
		result.AddError("edges", schema.ErrCodeCycleDetected, "pipeline edges contain a cycle")
		return result
	}

	if len(roots) > 1 {
		result.AddError("edges", schema.ErrCodeValidation,
			fmt.Sprintf("pipeline has %d start nodes %v; edges must form one connected chain", len(roots), roots))
	}
	return result
}

func sortedIDs(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
