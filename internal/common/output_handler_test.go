package common

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeflow/internal/errors"
	"resumeflow/internal/types"
)

func TestRunStageCommandWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	err := RunStageCommand(context.Background(), &buf, errors.NewNopLogger(),
		CommandConfig{OutputFormat: "text"},
		func(context.Context) (types.StartResult, error) {
			return types.StartResult{ThreadID: "thread-1", CurrentStep: "ingest", Status: "running"}, nil
		})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Thread: thread-1")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestRunStageCommandWritesToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out", "status.json")
	err := RunStageCommand(context.Background(), nil, errors.NewNopLogger(),
		CommandConfig{OutputFormat: "json", OutputFile: out},
		func(context.Context) (types.ExportProgress, error) {
			return types.ExportProgress{Step: 1, Total: 5, Percent: 20}, nil
		})
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"step":1,"total":5,"percent":20,"completed":false}`, string(raw))
}

func TestRunStageCommandPropagatesErrors(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.NewValidationError(errors.ErrCodeNoSession, "no session", nil)
	err := RunStageCommand(context.Background(), &buf, nil, CommandConfig{OutputFormat: "json"},
		func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, buf.String())
}

func TestReadInputEnforcesSizeLimit(t *testing.T) {
	dir := t.TempDir()
	resume := filepath.Join(dir, "resume.md")
	job := filepath.Join(dir, "job.txt")
	require.NoError(t, os.WriteFile(resume, []byte("# Ada"), 0600))
	require.NoError(t, os.WriteFile(job, []byte(strings.Repeat("x", 64)), 0600))

	pair := func(c []string) ([2]string, error) { return [2]string{c[0], c[1]}, nil }

	got, err := ReadInput(nil, 1024, []string{resume, job}, pair)
	require.NoError(t, err)
	assert.Equal(t, "# Ada", got[0])

	_, err = ReadInput(nil, 16, []string{resume, job}, pair)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "INVALID_INPUT_FILE"))
}

func TestHandleTextSkipsFormatting(t *testing.T) {
	var buf bytes.Buffer
	err := NewOutputHandlerTo(&buf, nil).HandleText("Ada Lovelace\nEngineer", CommandConfig{OutputFormat: "json"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace\nEngineer\n", buf.String())
}
