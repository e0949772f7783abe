package diagram

import (
	"fmt"
	"sort"

	"github.com/rendis/flowgpt/internal/engine"
	"github.com/rendis/flowgpt/internal/store"
)

const (
	startID = "__start__"
	endID   = "__end__"
)

// Run is the optional execution overlay for Build.
type Run struct {
	Execution *store.Execution
	Steps     []*store.ExecutionStep
}

// Input is what Build draws. NodeTypes and Run are optional.
type Input struct {
	Title     string
	Edges     []*store.Edge
	NodeTypes map[int64]string
	Run       *Run
}

// Build constructs a DiagramModel from a pipeline's edges. Nodes appear in
// first-reference order. It works for pipelines that are not (yet) valid
// chains: roots hang off the start marker and leaves lead to the end marker.
func Build(in Input) *DiagramModel {
	var (
		nodes    []*Node
		index    = make(map[int64]*Node)
		order    []int64
		incoming = make(map[int64]int)
		outgoing = make(map[int64][]int64)
		edges    = in.Edges
	)
	add := func(id int64, name string) {
		if _, ok := index[id]; ok {
			return
		}
		n := &Node{ID: nodeID(id), Label: name, Type: in.NodeTypes[id], Kind: NodeKindStep}
		if n.Type == "email" {
			n.Kind = NodeKindEmail
		}
		index[id] = n
		order = append(order, id)
	}
	for _, e := range edges {
		add(e.SourceID, e.SourceName)
		add(e.TargetID, e.TargetName)
		incoming[e.TargetID]++
		outgoing[e.SourceID] = append(outgoing[e.SourceID], e.TargetID)
	}

	if in.Run != nil {
		overlay(index, order, in.Run)
	}

	nodes = append(nodes, &Node{ID: startID, Label: "Start", Kind: NodeKindStart})
	for _, id := range order {
		nodes = append(nodes, index[id])
	}
	nodes = append(nodes, &Node{ID: endID, Label: "End", Kind: NodeKindEnd})

	var out []Edge
	for _, id := range order {
		if incoming[id] == 0 {
			out = append(out, Edge{From: startID, To: nodeID(id)})
		}
	}
	for _, e := range edges {
		out = append(out, Edge{From: nodeID(e.SourceID), To: nodeID(e.TargetID), Label: e.Condition})
	}
	for _, id := range order {
		if len(outgoing[id]) == 0 {
			out = append(out, Edge{From: nodeID(id), To: endID})
		}
	}

	return &DiagramModel{
		Title:  in.Title,
		Nodes:  nodes,
		Edges:  out,
		Levels: buildLevels(order, incoming, outgoing),
	}
}

func nodeID(id int64) string {
	return fmt.Sprintf("n%d", id)
}

// overlay marks each node with its state in the run.
func overlay(index map[int64]*Node, order []int64, run *Run) {
	done := make(map[int64]*store.ExecutionStep, len(run.Steps))
	for _, s := range run.Steps {
		if s.IsComplete {
			done[s.NodeID] = s
		}
	}

	exec := run.Execution
	var current int64
	if exec != nil && exec.CurrentNodeID != nil {
		current = *exec.CurrentNodeID
	}
	failure := ""
	if exec != nil && exec.IsComplete && exec.OutputData != nil {
		if out, ok := engine.DecodeOutput(*exec.OutputData).(map[string]any); ok {
			failure, _ = out["error"].(string)
		}
	}

	for _, id := range order {
		n := index[id]
		if s, ok := done[id]; ok {
			st := &StatusOverlay{Status: StatusCompleted}
			if s.CompletedAt != nil {
				st.DurationMs = s.CompletedAt.Sub(s.StartedAt).Milliseconds()
			}
			n.Status = st
			continue
		}
		switch {
		case id == current && failure != "":
			n.Status = &StatusOverlay{Status: StatusFailed, Error: failure}
		case id == current && exec != nil && !exec.IsComplete:
			n.Status = &StatusOverlay{Status: StatusRunning}
		case exec != nil && exec.IsComplete:
			n.Status = &StatusOverlay{Status: StatusSkipped}
		default:
			n.Status = &StatusOverlay{Status: StatusPending}
		}
	}
}

// buildLevels layers nodes with Kahn's algorithm. Nodes left over by a
// cycle share one final level so that every node is still drawn.
func buildLevels(order []int64, incoming map[int64]int, outgoing map[int64][]int64) [][]string {
	pos := make(map[int64]int, len(order))
	indeg := make(map[int64]int, len(order))
	for i, id := range order {
		pos[id] = i
		indeg[id] = incoming[id]
	}

	levels := [][]string{{startID}}
	placed := make(map[int64]bool, len(order))
	var frontier []int64
	for _, id := range order {
		if indeg[id] == 0 {
			frontier = append(frontier, id)
		}
	}
	for len(frontier) > 0 {
		level := make([]string, len(frontier))
		var next []int64
		for i, id := range frontier {
			level[i] = nodeID(id)
			placed[id] = true
			for _, t := range outgoing[id] {
				indeg[t]--
				if indeg[t] == 0 {
					next = append(next, t)
				}
			}
		}
		levels = append(levels, level)
		sort.Slice(next, func(i, j int) bool { return pos[next[i]] < pos[next[j]] })
		frontier = next
	}

	var rest []string
	for _, id := range order {
		if !placed[id] {
			rest = append(rest, nodeID(id))
		}
	}
	if len(rest) > 0 {
		levels = append(levels, rest)
	}
	return append(levels, []string{endID})
}
