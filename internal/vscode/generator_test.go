package vscode

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestGenerateFreshProject(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(nil)

	res, err := g.Generate(dir, Configuration{
		Settings:      map[string]any{"editor.formatOnSave": true},
		Extensions:    []string{"ms-python.python"},
		LaunchConfigs: []map[string]any{{"name": "Run App", "type": "debugpy"}},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Overrides)
	assert.Len(t, res.Written, 3)

	settings := readJSON(t, filepath.Join(dir, ".vscode", "settings.json"))
	assert.Equal(t, true, settings["editor.formatOnSave"])

	ext := readJSON(t, filepath.Join(dir, ".vscode", "extensions.json"))
	assert.Equal(t, []any{"ms-python.python"}, ext["recommendations"])

	launch := readJSON(t, filepath.Join(dir, ".vscode", "launch.json"))
	assert.Equal(t, LaunchSchemaVersion, launch["version"])
}

func TestGenerateMergesExistingSettingsAndBacksUp(t *testing.T) {
	dir := t.TempDir()
	vsDir := filepath.Join(dir, ".vscode")
	require.NoError(t, os.MkdirAll(vsDir, 0o755))
	existing := `{"files.autoSave": "afterDelay", "editor.tabSize": 2}`
	require.NoError(t, os.WriteFile(filepath.Join(vsDir, "settings.json"), []byte(existing), 0o644))

	g := NewGenerator(nil)
	res, err := g.Generate(dir, Configuration{
		Settings: map[string]any{"editor.tabSize": float64(4)},
	})
	require.NoError(t, err)

	settings := readJSON(t, filepath.Join(vsDir, "settings.json"))
	assert.Equal(t, "afterDelay", settings["files.autoSave"], "user key preserved")
	assert.Equal(t, float64(4), settings["editor.tabSize"], "incoming wins on conflict")

	require.Contains(t, res.Overrides, "editor.tabSize")

	backups, err := filepath.Glob(filepath.Join(vsDir, "settings.json.backup.*"))
	require.NoError(t, err)
	assert.Len(t, backups, 1, "exactly one timestamped backup of the touched file")
}

func TestGenerateTreatsUnreadableExistingAsEmpty(t *testing.T) {
	dir := t.TempDir()
	vsDir := filepath.Join(dir, ".vscode")
	require.NoError(t, os.MkdirAll(vsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(vsDir, "settings.json"), []byte("{broken"), 0o644))

	g := NewGenerator(nil)
	_, err := g.Generate(dir, Configuration{Settings: map[string]any{"editor.tabSize": float64(4)}})
	require.NoError(t, err)

	settings := readJSON(t, filepath.Join(vsDir, "settings.json"))
	assert.Equal(t, float64(4), settings["editor.tabSize"])
}

func TestGenerateSkipsEmptyFragments(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(nil)

	res, err := g.Generate(dir, Configuration{Settings: map[string]any{"a": float64(1)}})
	require.NoError(t, err)
	assert.Len(t, res.Written, 1)

	_, err = os.Stat(filepath.Join(dir, ".vscode", "launch.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateRejectsInvalidExtension(t *testing.T) {
	g := NewGenerator(nil)
	_, err := g.Generate(t.TempDir(), Configuration{Extensions: []string{"bad id"}})
	assert.Error(t, err)
}
