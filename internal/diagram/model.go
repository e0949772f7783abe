package diagram

// NodeKind classifies a diagram node.
type NodeKind string

const (
	NodeKindStep  NodeKind = "step"
	NodeKindEmail NodeKind = "email"
	NodeKindStart NodeKind = "start"
	NodeKindEnd   NodeKind = "end"
)

// Step states shown by the execution overlay.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRunning   = "running"
	StatusPending   = "pending"
	StatusSkipped   = "skipped"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node is one pipeline node, or a virtual start/end marker.
type Node struct {
	ID     string
	Label  string
	Type   string
	Kind   NodeKind
	Status *StatusOverlay
}

// StatusOverlay carries the state of a node within one execution.
type StatusOverlay struct {
	Status     string
	DurationMs int64
	Error      string
}

// Edge links two nodes. Label holds the edge condition, if any.
type Edge struct {
	From  string
	To    string
	Label string
}
