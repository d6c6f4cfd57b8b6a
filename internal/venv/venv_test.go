package venv

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix layout only")
	}
	root := Path("/tmp/proj")
	assert.Equal(t, "/tmp/proj/venv", root)
	assert.Equal(t, "/tmp/proj/venv/bin/python", InterpreterPath(root))
	assert.Equal(t, "/tmp/proj/venv/bin/pip", PipPath(root))
}

func TestSameMinor(t *testing.T) {
	assert.True(t, sameMinor("3.12.4", "3.12"))
	assert.True(t, sameMinor("3.12", "3.12.1"))
	assert.False(t, sameMinor("3.11.9", "3.12"))
}

func TestDiscoverPythonAcceptsConstraintForms(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix script fixture")
	}
	dir := t.TempDir()
	script := "#!/bin/sh\necho 'Python 3.11.7'\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "python3"), []byte(script), 0o755))
	t.Setenv("PATH", dir)

	exe, got, err := DiscoverPython(context.Background(), "3.10+")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "python3"), exe)
	assert.Equal(t, "3.11.7", got)

	_, _, err = DiscoverPython(context.Background(), "3.9-3.12")
	assert.NoError(t, err)

	_, _, err = DiscoverPython(context.Background(), "3.12")
	assert.Error(t, err, "exact request not satisfied by 3.11")

	_, _, err = DiscoverPython(context.Background(), "not-a-version")
	assert.Error(t, err)
}

func TestValidateStructure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix layout only")
	}
	root := filepath.Join(t.TempDir(), "venv")
	assert.Error(t, ValidateStructure(root), "missing environment rejected")

	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pyvenv.cfg"), []byte("home = /usr/bin\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin", "python"), []byte("#!/bin/sh\n"), 0o755))
	assert.Error(t, ValidateStructure(root), "environment without pip rejected")

	require.NoError(t, os.WriteFile(filepath.Join(root, "bin", "pip"), []byte("#!/bin/sh\n"), 0o755))
	assert.NoError(t, ValidateStructure(root))
}

func TestVersionOutputParsing(t *testing.T) {
	m := versionOutputPattern.FindStringSubmatch("Python 3.12.4\n")
	require.NotNil(t, m)
	assert.Equal(t, "3.12.4", m[1])

	assert.Nil(t, versionOutputPattern.FindStringSubmatch("not a version"))
}
