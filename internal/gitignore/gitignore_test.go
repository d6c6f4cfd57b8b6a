package gitignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCreatesFileWithExtras(t *testing.T) {
	dir := t.TempDir()
	created, err := Write(dir, []string{"db.sqlite3"})
	require.NoError(t, err)
	assert.True(t, created)

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "__pycache__/")
	assert.Contains(t, string(data), "venv/")
	assert.Contains(t, string(data), "db.sqlite3")
}

func TestWriteSkipsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("mine\n"), 0o644))

	created, err := Write(dir, nil)
	require.NoError(t, err)
	assert.False(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mine\n", string(data))
}
