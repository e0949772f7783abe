package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	if model.Title != "" {
		fmt.Fprintf(&b, "    %%%% %s\n", model.Title)
	}

	for _, node := range model.Nodes {
		fmt.Fprintf(&b, "    %s\n", mermaidNodeDef(node))
	}

	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", mermaidEscapeLabel(edge.Label))
		}
		fmt.Fprintf(&b, "    %s -->%s %s\n", edge.From, label, edge.To)
	}

	var classes []string
	for _, node := range model.Nodes {
		if node.Status != nil {
			classes = append(classes, fmt.Sprintf("    class %s %s\n", node.ID, node.Status.Status))
		}
	}
	if len(classes) > 0 {
		b.WriteString("\n")
		b.WriteString("    classDef completed fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
		b.WriteString("    classDef failed fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")
		b.WriteString("    classDef running fill:#1a5276,stroke:#0e3a52,color:#fff\n")
		b.WriteString("    classDef pending fill:#6b6b6b,stroke:#4a4a4a,color:#fff\n")
		b.WriteString("    classDef skipped fill:#4a4a4a,stroke:#333,color:#aaa,stroke-dasharray:5 5\n")
		for _, c := range classes {
			b.WriteString(c)
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	label := node.Label
	if node.Type != "" {
		label = fmt.Sprintf("%s<br/><i>%s</i>", label, node.Type)
	}
	label = mermaidEscapeLabel(label)

	switch node.Kind {
	case NodeKindStart, NodeKindEnd:
		return fmt.Sprintf("%s((%q))", node.ID, label)
	case NodeKindEmail:
		return fmt.Sprintf("%s[/%q/]", node.ID, label)
	default:
		return fmt.Sprintf("%s[%q]", node.ID, label)
	}
}

// mermaidEscapeLabel replaces characters that end a quoted label or an edge
// label early.
func mermaidEscapeLabel(s string) string {
	r := strings.NewReplacer(`"`, "#quot;", "|", "#124;", "\n", " ")
	return r.Replace(s)
}
