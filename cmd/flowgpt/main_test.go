package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowgpt/internal/engine"
	"github.com/rendis/flowgpt/internal/seed"
	"github.com/rendis/flowgpt/pkg/schema"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "flowgpt.yaml")
	body := "store:\n" +
		"  driver: libsql\n" +
		"  dsn: file:" + filepath.Join(dir, "flowgpt.db") + "\n" +
		"log:\n" +
		"  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestMigrate(t *testing.T) {
	cfg := writeConfig(t)
	out, err := runCLI(t, "--config", cfg, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema up to date (libsql)\n", out)

	// Migrations are idempotent.
	_, err = runCLI(t, "--config", cfg, "migrate")
	require.NoError(t, err)
}

func TestSeed_SkipsWhenDataExists(t *testing.T) {
	cfg := writeConfig(t)

	out, err := runCLI(t, "--config", cfg, "seed")
	require.NoError(t, err)
	var first seed.Result
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, seed.Result{Nodes: 6, Pipelines: 4, Edges: 7, Contacts: 3}, first)

	out, err = runCLI(t, "--config", cfg, "seed")
	require.NoError(t, err)
	var second seed.Result
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	assert.True(t, second.Skipped)
}

func TestSeed_MissingFile(t *testing.T) {
	cfg := writeConfig(t)
	_, err := runCLI(t, "--config", cfg, "seed", "--file", filepath.Join(t.TempDir(), "nope.hcl"))
	require.Error(t, err)
}

func TestRunAndStatus(t *testing.T) {
	cfg := writeConfig(t)
	_, err := runCLI(t, "--config", cfg, "seed")
	require.NoError(t, err)

	// Pipeline 1 is the cleanup pipeline: clean then uppercase.
	out, err := runCLI(t, "--config", cfg, "run", "--pipeline", "1", "--text", "hello    world")
	require.NoError(t, err)
	var res engine.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "HELLO WORLD", res.State.Text)
	require.NotZero(t, res.ExecutionID)

	out, err = runCLI(t, "--config", cfg, "status", itoa(res.ExecutionID))
	require.NoError(t, err)
	var st engine.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "Text Cleanup Pipeline", st.PipelineName)
	assert.True(t, st.IsComplete)
	require.Len(t, st.Steps, 2)
	assert.Equal(t, "Text Cleaner", st.Steps[0].NodeName)
	assert.Equal(t, "Uppercase Converter", st.Steps[1].NodeName)

	out, err = runCLI(t, "--config", cfg, "status", "--diagram", itoa(res.ExecutionID))
	require.NoError(t, err)
	assert.Contains(t, out, "=== Text Cleanup Pipeline ===")
	assert.Contains(t, out, "Text Cleaner")
	assert.Contains(t, out, "Uppercase Converter")
}

func TestRun_Errors(t *testing.T) {
	cfg := writeConfig(t)

	_, err := runCLI(t, "--config", cfg, "run", "--text", "x")
	require.Error(t, err)

	_, err = runCLI(t, "--config", cfg, "run", "--pipeline", "0", "--text", "x")
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))

	_, err = runCLI(t, "--config", cfg, "run", "--pipeline", "99", "--text", "x")
	assert.Equal(t, schema.ErrCodeConfiguration, schema.CodeOf(err))
}

func TestStatus_Errors(t *testing.T) {
	cfg := writeConfig(t)

	_, err := runCLI(t, "--config", cfg, "status", "abc")
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))

	_, err = runCLI(t, "--config", cfg, "status", "42")
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))

	_, err = runCLI(t, "--config", cfg, "status")
	require.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: mysql\n"), 0o644))

	_, err := runCLI(t, "--config", path, "migrate")
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))

	_, err = runCLI(t, "--config", filepath.Join(dir, "missing.yaml"), "migrate")
	require.Error(t, err)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
