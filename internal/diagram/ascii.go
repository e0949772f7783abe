package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// statusTag returns a short ASCII indicator for a status string.
func statusTag(status string) string {
	switch status {
	case StatusCompleted:
		return "[OK]"
	case StatusFailed:
		return "[FAIL]"
	case StatusRunning:
		return "[RUN]"
	case StatusSkipped:
		return "[SKIP]"
	case StatusPending:
		return "[PEND]"
	default:
		return ""
	}
}

// RenderASCII renders a DiagramModel as boxes stacked level by level, for
// terminal output.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		fmt.Fprintf(&b, "=== %s ===\n\n", model.Title)
	}

	labels := edgeLabels(model.Edges)
	for i, level := range model.Levels {
		var boxes []asciiBox
		for _, id := range level {
			if node := findNode(model.Nodes, id); node != nil {
				boxes = append(boxes, makeBox(node))
			}
		}
		renderBoxRow(&b, boxes)

		if i < len(model.Levels)-1 && len(boxes) > 0 {
			b.WriteString("       │")
			if len(level) == 1 {
				if l := labels[level[0]]; l != "" {
					fmt.Fprintf(&b, " if %s", l)
				}
			}
			b.WriteString("\n       ▼\n")
		}
	}

	for _, node := range model.Nodes {
		if node.Status != nil && node.Status.Error != "" {
			fmt.Fprintf(&b, "\n%s: %s\n", node.Label, node.Status.Error)
		}
	}
	return b.String()
}

// edgeLabels maps a source node to the condition of its single outgoing edge.
func edgeLabels(edges []Edge) map[string]string {
	out := make(map[string]string)
	for _, e := range edges {
		if e.Label != "" {
			out[e.From] = e.Label
		}
	}
	return out
}

type asciiBox struct {
	lines []string
	width int
}

func makeBox(node *Node) asciiBox {
	content := []string{node.Label}
	if node.Type != "" {
		content = append(content, "("+node.Type+")")
	}
	if node.Status != nil {
		if tag := statusTag(node.Status.Status); tag != "" {
			content = append(content, tag)
		}
		if node.Status.DurationMs > 0 {
			content = append(content, fmt.Sprintf("%dms", node.Status.DurationMs))
		}
	}

	maxLen := 0
	for _, line := range content {
		maxLen = max(maxLen, utf8.RuneCountInString(line))
	}
	width := maxLen + 4

	lines := []string{"┌" + strings.Repeat("─", width-2) + "┐"}
	for _, line := range content {
		pad := strings.Repeat(" ", maxLen-utf8.RuneCountInString(line))
		lines = append(lines, "│ "+line+pad+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")
	return asciiBox{lines: lines, width: width}
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	height := 0
	for _, box := range boxes {
		height = max(height, len(box.lines))
	}
	for row := 0; row < height; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

func findNode(nodes []*Node, id string) *Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
