package vscode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"typysetup/internal/backup"
	"typysetup/internal/store"
)

const (
	dirName        = ".vscode"
	settingsFile   = "settings.json"
	extensionsFile = "extensions.json"
	launchFile     = "launch.json"
)

// Generator writes a template's editor configuration into a project's
// .vscode directory, merging with whatever the project already has.
// Files about to be overwritten are backed up first; if any write fails,
// every file touched in the run is restored from its backup.
type Generator struct {
	backups *backup.Manager
	log     *zap.Logger
}

func NewGenerator(log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{backups: backup.NewManager(log), log: log}
}

// Dir returns the editor-config directory for a project.
func Dir(projectDir string) string {
	return filepath.Join(projectDir, dirName)
}

// Result reports what a Generate run produced.
type Result struct {
	Merged    Configuration
	Overrides map[string]Override
	Written   []string
}

// Generate merges incoming into the project's existing editor
// configuration and writes the result. Unreadable existing files are
// treated as empty with a warning so a broken settings.json never blocks
// a setup run.
func (g *Generator) Generate(projectDir string, incoming Configuration) (*Result, error) {
	if err := incoming.Validate(); err != nil {
		return nil, err
	}

	dir := Dir(projectDir)
	if err := store.EnsureDir(dir); err != nil {
		return nil, err
	}

	existing := g.readExisting(dir)
	merged := existing.Merge(incoming)
	overrides := DetectOverrides(existing.Settings, incoming.Settings)

	written, err := g.writeAll(dir, merged)
	if err != nil {
		return nil, err
	}
	return &Result{Merged: merged, Overrides: overrides, Written: written}, nil
}

func (g *Generator) readExisting(dir string) Configuration {
	var existing Configuration

	var settings map[string]any
	if g.readLenient(filepath.Join(dir, settingsFile), &settings) {
		existing.Settings = settings
	}

	var extDoc struct {
		Recommendations []string `json:"recommendations"`
	}
	if g.readLenient(filepath.Join(dir, extensionsFile), &extDoc) {
		existing.Extensions = extDoc.Recommendations
	}

	var launchDoc struct {
		Configurations []map[string]any `json:"configurations"`
	}
	if g.readLenient(filepath.Join(dir, launchFile), &launchDoc) {
		existing.LaunchConfigs = launchDoc.Configurations
	}
	return existing
}

func (g *Generator) readLenient(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			g.log.Warn("could not read existing editor config", zap.String("path", path), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		g.log.Warn("ignoring unparseable editor config", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}

func (g *Generator) writeAll(dir string, merged Configuration) ([]string, error) {
	type target struct {
		path    string
		payload any
		write   bool
	}
	targets := []target{
		{filepath.Join(dir, settingsFile), merged.Settings, len(merged.Settings) > 0},
		{filepath.Join(dir, extensionsFile), merged.ExtensionsPayload(), len(merged.Extensions) > 0},
		{filepath.Join(dir, launchFile), merged.LaunchPayload(), len(merged.LaunchConfigs) > 0},
	}

	restored := map[string]string{}
	restore := func() {
		for path, bak := range restored {
			if err := g.backups.Restore(path, bak); err != nil {
				g.log.Error("could not restore editor config", zap.String("path", path), zap.Error(err))
			}
		}
	}

	var written []string
	for _, t := range targets {
		if !t.write {
			continue
		}
		bak, err := g.backups.Create(t.path)
		if err != nil {
			restore()
			return nil, err
		}
		if bak != "" {
			restored[t.path] = bak
		}
		if err := writeJSON(t.path, t.payload); err != nil {
			restore()
			return nil, err
		}
		written = append(written, t.path)
	}
	return written, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
