// Package gitignore seeds a Python .gitignore into new projects.
package gitignore

import (
	"os"
	"path/filepath"
	"strings"
)

// FileName is the ignore file written into the project root.
const FileName = ".gitignore"

var baseEntries = []string{
	"__pycache__/",
	"*.py[cod]",
	"*.egg-info/",
	"build/",
	"dist/",
	"venv/",
	".venv/",
	".env",
	".ruff_cache/",
	".coverage",
}

// Write creates the project's .gitignore with the base Python entries
// plus any template-specific extras. Returns false without touching
// anything when the file already exists.
func Write(projectDir string, extra []string) (bool, error) {
	path := filepath.Join(projectDir, FileName)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	entries := append(append([]string{}, baseEntries...), extra...)
	content := strings.Join(entries, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
