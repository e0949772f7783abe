package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/rendis/flowgpt/internal/catalog"
	"github.com/rendis/flowgpt/internal/engine"
	"github.com/rendis/flowgpt/internal/store"
	"github.com/rendis/flowgpt/internal/validation"
	"github.com/rendis/flowgpt/pkg/schema"
)

func newTestSeeder(t *testing.T) (*Seeder, *store.SQLStore) {
	t.Helper()
	s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	v, err := validation.NewJSONSchemaValidator()
	require.NoError(t, err)
	seeder := NewSeeder(catalog.New(s, v, nil), engine.NewExecutor(s, engine.ExecutorConfig{}), nil)
	seeder.now = func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) }
	return seeder, s
}

func TestDefault(t *testing.T) {
	f, err := Default()
	require.NoError(t, err)
	assert.Len(t, f.Nodes, 6)
	assert.Len(t, f.Pipelines, 4)
	assert.Len(t, f.Contacts, 3)
	assert.Len(t, f.Samples, 3)

	config, err := f.Nodes[2].ConfigMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"num_sentences": int64(2), "max_chars": int64(150)}, config)

	empty, err := f.Nodes[1].ConfigMap()
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.True(t, f.Pipelines[0].IsActive())
	assert.Equal(t, []string{"clean", "summary", "spanish", "email"}, f.Pipelines[3].Steps)
	assert.Equal(t, 7, f.Contacts[0].DaysAgo)
	assert.False(t, f.Contacts[2].IsRead)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `node "a" {`, "failed to parse"},
		{"missing attribute", `node "a" { name = "A" }`, "failed to decode"},
		{"unknown step", `
node "a" {
  name = "A"
  type = "uppercase"
}
pipeline "p" {
  name  = "P"
  steps = ["a", "b"]
}`, `undeclared node "b"`},
		{"duplicate node", `
node "a" {
  name = "A"
  type = "uppercase"
}
node "a" {
  name = "A2"
  type = "uppercase"
}`, `node "a" declared twice`},
		{"short pipeline", `
node "a" {
  name = "A"
  type = "uppercase"
}
pipeline "p" {
  name  = "P"
  steps = ["a"]
}`, "at least two steps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("test.hcl", []byte(tt.src))
			require.Error(t, err)
			assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
node "a" {
  name   = "A"
  type   = "summary"
  config = { num_sentences = 1, max_chars = 12.5, tags = ["x", "y"] }
}
node "b" {
  name = "B"
  type = "uppercase"
}
pipeline "p" {
  name   = "P"
  active = false
  steps  = ["a", "b"]
}
`), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.False(t, f.Pipelines[0].IsActive())

	config, err := f.Nodes[0].ConfigMap()
	require.NoError(t, err)
	assert.Equal(t, int64(1), config["num_sentences"])
	assert.Equal(t, 12.5, config["max_chars"])
	assert.Equal(t, []any{"x", "y"}, config["tags"])

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}

func TestConfigMap_NotObject(t *testing.T) {
	n := &NodeBlock{Key: "a", Config: cty.StringVal("oops")}
	_, err := n.ConfigMap()
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestSeed(t *testing.T) {
	seeder, s := newTestSeeder(t)
	ctx := context.Background()
	f, err := Default()
	require.NoError(t, err)

	res, err := seeder.Seed(ctx, f, Options{})
	require.NoError(t, err)
	assert.Equal(t, &Result{Nodes: 6, Pipelines: 4, Edges: 7, Contacts: 3}, res)

	pipelines, err := s.ListPipelines(ctx, store.PipelineFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, pipelines, 4)
	assert.Equal(t, "Full Text Processing Pipeline", pipelines[0].Name)

	edges, err := s.ListEdges(ctx, pipelines[0].ID)
	require.NoError(t, err)
	require.Len(t, edges, 3)
	assert.Equal(t, "Text Cleaner", edges[0].SourceName)
	assert.Equal(t, "Email Sender", edges[2].TargetName)

	contacts, err := s.ListContacts(ctx, store.ContactFilter{})
	require.NoError(t, err)
	require.Len(t, contacts, 3)
	assert.Equal(t, "Michael Brown", contacts[0].Name)
	assert.False(t, contacts[0].IsRead)
	assert.True(t, contacts[2].IsRead)

	again, err := seeder.Seed(ctx, f, Options{RunSamples: true})
	require.NoError(t, err)
	assert.True(t, again.Skipped)

	execs, err := s.ListExecutions(ctx, store.ExecutionFilter{})
	require.NoError(t, err)
	assert.Empty(t, execs)
}

func TestSeed_RunSamples(t *testing.T) {
	seeder, s := newTestSeeder(t)
	ctx := context.Background()
	f, err := Default()
	require.NoError(t, err)

	res, err := seeder.Seed(ctx, f, Options{RunSamples: true})
	require.NoError(t, err)
	assert.Equal(t, 12, res.Executions)
	assert.Zero(t, res.Failures)

	execs, err := s.ListExecutions(ctx, store.ExecutionFilter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, execs, 12)
	for _, e := range execs {
		assert.True(t, e.IsComplete)
		require.NotNil(t, e.OutputData)
	}
}

func TestSeed_InvalidNode(t *testing.T) {
	seeder, _ := newTestSeeder(t)
	f, err := Parse("bad.hcl", []byte(`
node "a" {
  name = "A"
  type = "sentiment"
}
`))
	require.NoError(t, err)

	res, err := seeder.Seed(context.Background(), f, Options{})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
	assert.Zero(t, res.Nodes)
}
