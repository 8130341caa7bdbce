package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "resume.md")
	require.NoError(t, os.WriteFile(small, []byte("# Ada"), 0600))
	big := filepath.Join(dir, "job.txt")
	require.NoError(t, os.WriteFile(big, make([]byte, 2048), 0600))

	tests := []struct {
		name    string
		file    string
		max     int64
		wantErr string
	}{
		{"readable", small, 1024, ""},
		{"no limit", big, 0, ""},
		{"too large", big, 1024, "larger than the 1.0 KB limit"},
		{"missing", filepath.Join(dir, "nope.txt"), 0, "does not exist"},
		{"directory", dir, 0, "is a directory"},
		{"empty name", "", 0, "cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInputFile(tt.file, tt.max)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnsureDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "exports", "nested", "resume.pdf")
	require.NoError(t, EnsureDir(target))
	info, err := os.Stat(filepath.Dir(target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileKinds(t *testing.T) {
	assert.True(t, IsTextFile("cv.MD"))
	assert.True(t, IsTextFile("draft.html"))
	assert.False(t, IsTextFile("cv.pdf"))
	assert.True(t, IsHTMLFile("draft.HTM"))
	assert.False(t, IsHTMLFile("cv.txt"))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "2.0 MB", FormatFileSize(2*1024*1024))
}
