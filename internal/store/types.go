package store

import "time"

// Node is a reusable operation definition: a type tag plus its config.
type Node struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	NodeType    string         `json:"node_type"`
	Description string         `json:"description"`
	Config      map[string]any `json:"config"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Pipeline is a named chain of nodes connected by edges.
type Pipeline struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Edge is a directed link between two nodes inside one pipeline.
// SourceName and TargetName are filled on reads.
type Edge struct {
	ID         int64  `json:"id"`
	PipelineID int64  `json:"pipeline_id"`
	SourceID   int64  `json:"source_id"`
	TargetID   int64  `json:"target_id"`
	Order      int    `json:"order"`
	Condition  string `json:"condition,omitempty"`
	SourceName string `json:"source_name,omitempty"`
	TargetName string `json:"target_name,omitempty"`
}

// Execution is one run of a pipeline against one input text.
type Execution struct {
	ID              int64      `json:"id"`
	PipelineID      int64      `json:"pipeline_id"`
	PipelineName    string     `json:"pipeline_name,omitempty"`
	InputData       string     `json:"input_data"`
	OutputData      *string    `json:"output_data,omitempty"`
	IsComplete      bool       `json:"is_complete"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CurrentNodeID   *int64     `json:"current_node_id,omitempty"`
	CurrentNodeName string     `json:"current_node_name,omitempty"`
}

// ExecutionStep is one node's contribution to an execution. Sequence is the
// zero-based position of the node in the run and keys the row together with
// ExecutionID.
type ExecutionStep struct {
	ID          int64      `json:"id"`
	ExecutionID int64      `json:"execution_id"`
	NodeID      int64      `json:"node_id"`
	NodeName    string     `json:"node_name,omitempty"`
	NodeType    string     `json:"node_type,omitempty"`
	Sequence    int        `json:"sequence"`
	InputData   string     `json:"input_data"`
	OutputData  string     `json:"output_data"`
	IsComplete  bool       `json:"is_complete"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Contact is a message submitted through the contact form.
type Contact struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	IsRead    bool      `json:"is_read"`
}

// NodeUpdate holds the mutable fields of a node. Nil fields are left unchanged.
type NodeUpdate struct {
	Name        *string        `json:"name,omitempty"`
	NodeType    *string        `json:"node_type,omitempty"`
	Description *string        `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

// PipelineUpdate holds the mutable fields of a pipeline.
type PipelineUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// PipelineFilter controls ListPipelines.
type PipelineFilter struct {
	ActiveOnly bool `json:"active_only,omitempty"`
}

// ExecutionFilter controls ListExecutions. Results are newest first.
type ExecutionFilter struct {
	PipelineID int64      `json:"pipeline_id,omitempty"`
	Complete   *bool      `json:"complete,omitempty"`
	Since      *time.Time `json:"since,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}

// ContactFilter controls ListContacts. Results are newest first.
type ContactFilter struct {
	UnreadOnly bool `json:"unread_only,omitempty"`
	Limit      int  `json:"limit,omitempty"`
}
