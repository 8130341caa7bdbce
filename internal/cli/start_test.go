package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeflow/internal/errors"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestBuildStartInput(t *testing.T) {
	resume := writeTemp(t, "resume.md", "# Ada Lovelace")
	job := writeTemp(t, "job.txt", "Staff engineer, Go")

	t.Run("both files", func(t *testing.T) {
		in, err := buildStartInput(nil, 1024, []string{resume, job}, "", "")
		require.NoError(t, err)
		assert.Equal(t, "# Ada Lovelace", in.ProfileText)
		assert.Equal(t, "Staff engineer, Go", in.JobText)
	})

	t.Run("job url replaces job file", func(t *testing.T) {
		in, err := buildStartInput(nil, 1024, []string{resume}, "", "https://jobs.example.com/1")
		require.NoError(t, err)
		assert.Equal(t, "# Ada Lovelace", in.ProfileText)
		assert.Empty(t, in.JobText)
		assert.Equal(t, "https://jobs.example.com/1", in.JobURL)
	})

	t.Run("profile url replaces resume file", func(t *testing.T) {
		in, err := buildStartInput(nil, 1024, []string{job}, "https://linkedin.com/in/ada", "")
		require.NoError(t, err)
		assert.Empty(t, in.ProfileText)
		assert.Equal(t, "Staff engineer, Go", in.JobText)
	})

	t.Run("both urls", func(t *testing.T) {
		in, err := buildStartInput(nil, 1024, nil, "https://linkedin.com/in/ada", "https://jobs.example.com/1")
		require.NoError(t, err)
		assert.Empty(t, in.ProfileText)
		assert.Empty(t, in.JobText)
	})

	t.Run("wrong argument count", func(t *testing.T) {
		_, err := buildStartInput(nil, 1024, []string{resume}, "", "")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))
	})

	t.Run("size limit", func(t *testing.T) {
		_, err := buildStartInput(nil, 4, []string{resume, job}, "", "")
		assert.Error(t, err)
	})
}

func TestProgressBar(t *testing.T) {
	assert.True(t, strings.HasSuffix(progressBar(40), "  40%"))
	assert.True(t, strings.HasSuffix(progressBar(140), " 100%"))
	assert.True(t, strings.HasSuffix(progressBar(-3), "   0%"))
}
