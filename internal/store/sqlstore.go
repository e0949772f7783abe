package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rendis/flowgpt/pkg/schema"
)

// SQLStore implements the Store interface over database/sql. libSQL (embedded
// SQLite fork) is the default backend; Postgres is reached through pgx.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// Open returns a Store for driver ("libsql" or "postgres") and dsn.
func Open(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "", DriverLibSQL:
		return NewLibSQLStore(dsn)
	case DriverPostgres:
		return NewPostgresStore(dsn)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unsupported store driver %q", driver)
	}
}

// NewLibSQLStore opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/flowgpt.db".
func NewLibSQLStore(dbPath string) (*SQLStore, error) {
	db, err := sql.Open(libsqlDialect.sqlDriver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	for _, p := range libsqlDialect.pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &SQLStore{db: db, dialect: libsqlDialect}, nil
}

// NewPostgresStore connects to Postgres using a pgx connection string.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open(postgresDialect.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &SQLStore{db: db, dialect: postgresDialect}, nil
}

// DB returns the underlying *sql.DB.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Driver reports which backend the store talks to.
func (s *SQLStore) Driver() string { return s.dialect.name }

// Close closes the database.
func (s *SQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *SQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db, s.dialect)
}

// Vacuum reclaims space left behind by pruned executions.
func (s *SQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

func (s *SQLStore) q(query string) string { return s.dialect.rebind(query) }

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// --- Nodes ---

const nodeColumns = `id, name, node_type, description, config, created_at, updated_at`

func (s *SQLStore) CreateNode(ctx context.Context, node *Node) error {
	config, err := marshalMapOrDefault(node.Config)
	if err != nil {
		return fmt.Errorf("marshal node config: %w", err)
	}
	node.CreatedAt = timeOrNow(node.CreatedAt)
	node.UpdatedAt = node.CreatedAt
	return s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO nodes (name, node_type, description, config, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		node.Name, node.NodeType, node.Description, string(config), node.CreatedAt, node.UpdatedAt,
	).Scan(&node.ID)
}

func (s *SQLStore) GetNode(ctx context.Context, id int64) (*Node, error) {
	n, err := scanNode(s.db.QueryRowContext(ctx, s.q(`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`), id))
	if err == sql.ErrNoRows {
		return nil, storeNotFound("node", id)
	}
	return n, err
}

func (s *SQLStore) UpdateNode(ctx context.Context, id int64, update NodeUpdate) error {
	var sets []string
	var args []any

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.NodeType != nil {
		sets = append(sets, "node_type = ?")
		args = append(args, *update.NodeType)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.Config != nil {
		config, err := json.Marshal(update.Config)
		if err != nil {
			return fmt.Errorf("marshal node config: %w", err)
		}
		sets = append(sets, "config = ?")
		args = append(args, string(config))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE nodes SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "node", id)
}

func (s *SQLStore) DeleteNode(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM nodes WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "node", id)
}

func (s *SQLStore) ListNodes(ctx context.Context) ([]*Node, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func scanNode(row rowScanner) (*Node, error) {
	n := &Node{}
	var config string
	if err := row.Scan(&n.ID, &n.Name, &n.NodeType, &n.Description, &config, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Config = map[string]any{}
	if config != "" {
		if err := json.Unmarshal([]byte(config), &n.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config of node %d: %w", n.ID, err)
		}
	}
	return n, nil
}

// --- Pipelines ---

const pipelineColumns = `id, name, description, is_active, created_at, updated_at`

func (s *SQLStore) CreatePipeline(ctx context.Context, p *Pipeline) error {
	p.CreatedAt = timeOrNow(p.CreatedAt)
	p.UpdatedAt = p.CreatedAt
	return s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO pipelines (name, description, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		p.Name, p.Description, p.IsActive, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
}

func (s *SQLStore) GetPipeline(ctx context.Context, id int64) (*Pipeline, error) {
	p, err := scanPipeline(s.db.QueryRowContext(ctx, s.q(`SELECT `+pipelineColumns+` FROM pipelines WHERE id = ?`), id))
	if err == sql.ErrNoRows {
		return nil, storeNotFound("pipeline", id)
	}
	return p, err
}

func (s *SQLStore) UpdatePipeline(ctx context.Context, id int64, update PipelineUpdate) error {
	var sets []string
	var args []any

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *update.IsActive)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE pipelines SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "pipeline", id)
}

func (s *SQLStore) DeletePipeline(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM pipelines WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "pipeline", id)
}

func (s *SQLStore) ListPipelines(ctx context.Context, filter PipelineFilter) ([]*Pipeline, error) {
	query := `SELECT ` + pipelineColumns + ` FROM pipelines`
	var args []any
	if filter.ActiveOnly {
		query += " WHERE is_active = ?"
		args = append(args, true)
	}
	query += " ORDER BY name, id"

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pipelines []*Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, rows.Err()
}

func scanPipeline(row rowScanner) (*Pipeline, error) {
	p := &Pipeline{}
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// --- Edges ---

func (s *SQLStore) CreateEdge(ctx context.Context, edge *Edge) error {
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO edges (pipeline_id, source_node_id, target_node_id, "order", condition)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		edge.PipelineID, edge.SourceID, edge.TargetID, edge.Order, edge.Condition,
	).Scan(&edge.ID)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return schema.NewErrorf(schema.ErrCodeConflict,
			"pipeline %d already links node %d forward or node %d backward", edge.PipelineID, edge.SourceID, edge.TargetID).
			WithCause(err)
	case isForeignKeyViolation(err):
		return schema.NewErrorf(schema.ErrCodeNotFound,
			"pipeline %d or one of nodes %d, %d not found", edge.PipelineID, edge.SourceID, edge.TargetID).
			WithCause(err)
	default:
		return err
	}
}

func (s *SQLStore) DeleteEdge(ctx context.Context, pipelineID, edgeID int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM edges WHERE id = ? AND pipeline_id = ?`), edgeID, pipelineID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "edge", edgeID)
}

func (s *SQLStore) ListEdges(ctx context.Context, pipelineID int64) ([]*Edge, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT e.id, e.pipeline_id, e.source_node_id, e.target_node_id, e."order", e.condition, src.name, dst.name
		 FROM edges e
		 JOIN nodes src ON src.id = e.source_node_id
		 JOIN nodes dst ON dst.id = e.target_node_id
		 WHERE e.pipeline_id = ?
		 ORDER BY e."order", e.id`), pipelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []*Edge
	for rows.Next() {
		e := &Edge{}
		if err := rows.Scan(&e.ID, &e.PipelineID, &e.SourceID, &e.TargetID, &e.Order, &e.Condition,
			&e.SourceName, &e.TargetName); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// --- Executions ---

const executionSelect = `SELECT e.id, e.pipeline_id, p.name, e.input_data, e.output_data, e.is_complete,
	e.started_at, e.completed_at, e.current_node_id, n.name
	FROM pipeline_executions e
	JOIN pipelines p ON p.id = e.pipeline_id
	LEFT JOIN nodes n ON n.id = e.current_node_id`

func (s *SQLStore) CreateExecution(ctx context.Context, exec *Execution) error {
	exec.StartedAt = timeOrNow(exec.StartedAt)
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO pipeline_executions (pipeline_id, input_data, is_complete, started_at)
		 VALUES (?, ?, ?, ?) RETURNING id`),
		exec.PipelineID, exec.InputData, false, exec.StartedAt,
	).Scan(&exec.ID)
	if isForeignKeyViolation(err) {
		return storeNotFound("pipeline", exec.PipelineID).WithCause(err)
	}
	return err
}

func (s *SQLStore) GetExecution(ctx context.Context, id int64) (*Execution, error) {
	exec, err := scanExecution(s.db.QueryRowContext(ctx, s.q(executionSelect+` WHERE e.id = ?`), id))
	if err == sql.ErrNoRows {
		return nil, storeNotFound("execution", id)
	}
	return exec, err
}

func (s *SQLStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error) {
	var where []string
	var args []any

	if filter.PipelineID != 0 {
		where = append(where, "e.pipeline_id = ?")
		args = append(args, filter.PipelineID)
	}
	if filter.Complete != nil {
		where = append(where, "e.is_complete = ?")
		args = append(args, *filter.Complete)
	}
	if filter.Since != nil {
		where = append(where, "e.started_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := executionSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY e.started_at DESC, e.id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []*Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, exec)
	}
	return execs, rows.Err()
}

// SetCurrentNode points the execution at nodeID. A node that no longer exists
// leaves the pointer unchanged.
func (s *SQLStore) SetCurrentNode(ctx context.Context, executionID, nodeID int64) error {
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE pipeline_executions
		 SET current_node_id = COALESCE((SELECT id FROM nodes WHERE id = ?), current_node_id)
		 WHERE id = ?`), nodeID, executionID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "execution", executionID)
}

func (s *SQLStore) CompleteExecution(ctx context.Context, id int64, output string, completedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE pipeline_executions SET is_complete = ?, completed_at = ?, output_data = ? WHERE id = ?`),
		true, timeOrNow(completedAt), output, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "execution", id)
}

// PruneExecutions deletes completed executions (and their steps) that
// finished before the cutoff and returns their ids.
func (s *SQLStore) PruneExecutions(ctx context.Context, completedBefore time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`DELETE FROM pipeline_executions WHERE is_complete = ? AND completed_at < ? RETURNING id`),
		true, completedBefore.UTC())
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// ExecutionIDsForNode lists the executions that recorded a step of nodeID or
// currently point at it, i.e. the executions whose status changes when the
// node is deleted.
func (s *SQLStore) ExecutionIDsForNode(ctx context.Context, nodeID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT execution_id FROM execution_steps WHERE node_id = ?
		 UNION
		 SELECT id FROM pipeline_executions WHERE current_node_id = ?
		 ORDER BY 1`), nodeID, nodeID)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanExecution(row rowScanner) (*Execution, error) {
	exec := &Execution{}
	var (
		output      sql.NullString
		completedAt sql.NullTime
		currentNode sql.NullInt64
		currentName sql.NullString
	)
	if err := row.Scan(&exec.ID, &exec.PipelineID, &exec.PipelineName, &exec.InputData, &output,
		&exec.IsComplete, &exec.StartedAt, &completedAt, &currentNode, &currentName); err != nil {
		return nil, err
	}
	if output.Valid {
		exec.OutputData = &output.String
	}
	if completedAt.Valid {
		exec.CompletedAt = &completedAt.Time
	}
	if currentNode.Valid {
		exec.CurrentNodeID = &currentNode.Int64
	}
	exec.CurrentNodeName = currentName.String
	return exec, nil
}

// --- Execution Steps ---

// UpsertStep writes the step keyed by (execution, sequence). Missing
// executions or nodes are reported as NOT_FOUND.
func (s *SQLStore) UpsertStep(ctx context.Context, step *ExecutionStep) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.requireRow(ctx, tx, "pipeline_executions", "execution", step.ExecutionID); err != nil {
		return err
	}
	if err := s.requireRow(ctx, tx, "nodes", "node", step.NodeID); err != nil {
		return err
	}

	step.StartedAt = timeOrNow(step.StartedAt)
	err = tx.QueryRowContext(ctx, s.q(
		`INSERT INTO execution_steps (execution_id, node_id, sequence, input_data, output_data, is_complete, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (execution_id, sequence) DO UPDATE SET
		   node_id = excluded.node_id,
		   input_data = excluded.input_data,
		   output_data = excluded.output_data,
		   is_complete = excluded.is_complete,
		   started_at = excluded.started_at,
		   completed_at = excluded.completed_at
		 RETURNING id`),
		step.ExecutionID, step.NodeID, step.Sequence, step.InputData, step.OutputData,
		step.IsComplete, step.StartedAt, nullTime(step.CompletedAt),
	).Scan(&step.ID)
	if err != nil {
		return fmt.Errorf("upsert step: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit step: %w", err)
	}
	return nil
}

func (s *SQLStore) ListSteps(ctx context.Context, executionID int64) ([]*ExecutionStep, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT s.id, s.execution_id, s.node_id, n.name, n.node_type, s.sequence, s.input_data, s.output_data,
		        s.is_complete, s.started_at, s.completed_at
		 FROM execution_steps s
		 JOIN nodes n ON n.id = s.node_id
		 WHERE s.execution_id = ?
		 ORDER BY s.sequence, s.id`), executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*ExecutionStep
	for rows.Next() {
		st := &ExecutionStep{}
		var completedAt sql.NullTime
		if err := rows.Scan(&st.ID, &st.ExecutionID, &st.NodeID, &st.NodeName, &st.NodeType, &st.Sequence,
			&st.InputData, &st.OutputData, &st.IsComplete, &st.StartedAt, &completedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			st.CompletedAt = &completedAt.Time
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// --- Contacts ---

func (s *SQLStore) CreateContact(ctx context.Context, c *Contact) error {
	c.CreatedAt = timeOrNow(c.CreatedAt)
	return s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO contacts (name, email, phone, message, created_at, is_read)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		c.Name, c.Email, c.Phone, c.Message, c.CreatedAt, c.IsRead,
	).Scan(&c.ID)
}

func (s *SQLStore) ListContacts(ctx context.Context, filter ContactFilter) ([]*Contact, error) {
	query := `SELECT id, name, email, phone, message, created_at, is_read FROM contacts`
	var args []any
	if filter.UnreadOnly {
		query += " WHERE is_read = ?"
		args = append(args, false)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		c := &Contact{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Message, &c.CreatedAt, &c.IsRead); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *SQLStore) MarkContactRead(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE contacts SET is_read = ? WHERE id = ?`), true, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "contact", id)
}

// --- Helpers ---

func (s *SQLStore) requireRow(ctx context.Context, tx *sql.Tx, table, resource string, id int64) error {
	var one int
	err := tx.QueryRowContext(ctx, s.q(`SELECT 1 FROM `+table+` WHERE id = ?`), id).Scan(&one)
	if err == sql.ErrNoRows {
		return storeNotFound(resource, id)
	}
	return err
}

func storeNotFound(resource string, id int64) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %d not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

// timeOrNow normalizes t to UTC, substituting the current time for zero values.
func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func marshalMapOrDefault(m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(m)
}

var _ Store = (*SQLStore)(nil)
