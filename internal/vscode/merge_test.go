package vscode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestMergeSettingsIncomingWinsOnConflict(t *testing.T) {
	existing := map[string]any{"editor.tabSize": float64(2), "files.autoSave": "off"}
	incoming := map[string]any{"editor.tabSize": float64(4)}

	merged := MergeSettings(existing, incoming)

	want := map[string]any{"editor.tabSize": float64(4), "files.autoSave": "off"}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Errorf("merged settings mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeSettingsRecursesIntoNestedMaps(t *testing.T) {
	existing := map[string]any{
		"python.analysis": map[string]any{"typeCheckingMode": "off", "autoImportCompletions": true},
	}
	incoming := map[string]any{
		"python.analysis": map[string]any{"typeCheckingMode": "basic"},
	}

	merged := MergeSettings(existing, incoming)

	want := map[string]any{
		"python.analysis": map[string]any{"typeCheckingMode": "basic", "autoImportCompletions": true},
	}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Errorf("nested merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeSettingsIsIdempotent(t *testing.T) {
	existing := map[string]any{"a": float64(1), "nested": map[string]any{"x": "old"}}
	incoming := map[string]any{"b": float64(2), "nested": map[string]any{"x": "new"}}

	once := MergeSettings(existing, incoming)
	twice := MergeSettings(once, incoming)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second merge changed the result (-once +twice):\n%s", diff)
	}
}

func TestMergeSettingsDoesNotMutateInputs(t *testing.T) {
	existing := map[string]any{"k": "old"}
	incoming := map[string]any{"k": "new"}
	MergeSettings(existing, incoming)
	assert.Equal(t, "old", existing["k"])
}

func TestMergeExtensionsDeduplicatesPreservingOrder(t *testing.T) {
	merged := MergeExtensions(
		[]string{"ms-python.python", "charliermarsh.ruff"},
		[]string{"ms-python.vscode-pylance", "ms-python.python"},
	)
	assert.Equal(t, []string{"ms-python.python", "charliermarsh.ruff", "ms-python.vscode-pylance"}, merged)
}

func TestMergeLaunchConfigsReplacesByNameInPlace(t *testing.T) {
	existing := []map[string]any{
		{"name": "Debug Tests", "type": "debugpy", "module": "pytest"},
		{"name": "Run App", "type": "debugpy", "program": "old.py"},
	}
	incoming := []map[string]any{
		{"name": "Run App", "type": "debugpy", "program": "main.py"},
		{"name": "Run Server", "type": "debugpy", "module": "uvicorn"},
	}

	merged := MergeLaunchConfigs(existing, incoming)

	assert.Len(t, merged, 3)
	assert.Equal(t, "Debug Tests", merged[0]["name"])
	assert.Equal(t, "Run App", merged[1]["name"])
	assert.Equal(t, "main.py", merged[1]["program"], "same-named entry replaced in place")
	assert.Equal(t, "Run Server", merged[2]["name"])
}

func TestMergeLaunchConfigsKeepsUnnamedEntries(t *testing.T) {
	existing := []map[string]any{{"type": "debugpy"}}
	incoming := []map[string]any{{"name": "Run App"}}
	merged := MergeLaunchConfigs(existing, incoming)
	assert.Len(t, merged, 2)
}

func TestDetectOverrides(t *testing.T) {
	existing := map[string]any{
		"editor.tabSize":  float64(2),
		"files.autoSave":  "off",
		"python.analysis": map[string]any{"typeCheckingMode": "off"},
	}
	incoming := map[string]any{
		"editor.tabSize":  float64(4),
		"files.autoSave":  "off",
		"python.analysis": map[string]any{"typeCheckingMode": "basic"},
		"editor.rulers":   []any{float64(88)},
	}

	overrides := DetectOverrides(existing, incoming)

	assert.Equal(t, []string{"editor.tabSize", "python.analysis"}, OverrideKeys(overrides))
	assert.Equal(t, float64(2), overrides["editor.tabSize"].Old)
	assert.Equal(t, float64(4), overrides["editor.tabSize"].New)
}

func TestValidateRejectsMalformedExtensionID(t *testing.T) {
	cfg := Configuration{Extensions: []string{"ms-python.python", "not-an-id"}}
	assert.Error(t, cfg.Validate())
}
