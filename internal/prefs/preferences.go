// Package prefs owns the persistent per-user preference record: default
// answers for wizard prompts, a most-recently-used list of project
// templates, and a bounded history of past setup runs.
package prefs

import (
	"fmt"
	"time"
)

// Supported package managers.
const (
	ManagerUV     = "uv"
	ManagerPip    = "pip"
	ManagerPoetry = "poetry"
)

// MergeModeMerge is the only editor-config merge behavior currently
// supported; the field exists so the record can grow alternatives
// without a schema break.
const MergeModeMerge = "merge"

// SchemaVersion is written into every preference record.
const SchemaVersion = "1.0"

const (
	// HistoryLimit bounds setup history; the oldest entries are dropped.
	HistoryLimit = 20
	// PreferredTypesLimit bounds the template MRU list.
	PreferredTypesLimit = 10
)

// KnownManagers lists valid preferred_manager values in display order.
var KnownManagers = []string{ManagerUV, ManagerPip, ManagerPoetry}

// HistoryEntry records the outcome of one setup run. Timestamps are
// stored in UTC so serialized records carry the Z suffix.
type HistoryEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	SetupType       string    `json:"setup_type"`
	ProjectPath     string    `json:"project_path"`
	ProjectName     string    `json:"project_name,omitempty"`
	PythonVersion   string    `json:"python_version,omitempty"`
	PackageManager  string    `json:"package_manager,omitempty"`
	Success         bool      `json:"success"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
}

// Preferences is the full per-user record.
type Preferences struct {
	PreferredManager       string         `json:"preferred_manager"`
	PreferredPythonVersion string         `json:"preferred_python_version,omitempty"`
	PreferredSetupTypes    []string       `json:"preferred_setup_types"`
	SetupHistory           []HistoryEntry `json:"setup_history"`
	VSCodeMergeMode        string         `json:"vscode_config_merge_mode"`
	FirstRun               bool           `json:"first_run"`
	Version                string         `json:"version"`
	LastUpdated            time.Time      `json:"last_updated"`
}

// Default returns a fresh record for a first run or a reset.
func Default() *Preferences {
	return &Preferences{
		PreferredManager:    ManagerUV,
		PreferredSetupTypes: []string{},
		SetupHistory:        []HistoryEntry{},
		VSCodeMergeMode:     MergeModeMerge,
		FirstRun:            true,
		Version:             SchemaVersion,
		LastUpdated:         time.Now().UTC(),
	}
}

// Validate rejects records whose enumerated fields carry unknown values.
// A failing record is treated the same as an unparseable one.
func (p *Preferences) Validate() error {
	if !isKnownManager(p.PreferredManager) {
		return fmt.Errorf("unknown preferred_manager %q", p.PreferredManager)
	}
	if p.VSCodeMergeMode != MergeModeMerge {
		return fmt.Errorf("unknown vscode_config_merge_mode %q", p.VSCodeMergeMode)
	}
	if p.Version == "" {
		return fmt.Errorf("missing schema version")
	}
	return nil
}

// AddHistory appends an entry, evicting the oldest entries beyond the
// history limit.
func (p *Preferences) AddHistory(e HistoryEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	p.SetupHistory = append(p.SetupHistory, e)
	if n := len(p.SetupHistory); n > HistoryLimit {
		p.SetupHistory = p.SetupHistory[n-HistoryLimit:]
	}
	p.touch()
}

// PromoteSetupType moves slug to the front of the template MRU list,
// deduplicating and trimming to the limit.
func (p *Preferences) PromoteSetupType(slug string) {
	mru := make([]string, 0, len(p.PreferredSetupTypes)+1)
	mru = append(mru, slug)
	for _, s := range p.PreferredSetupTypes {
		if s != slug {
			mru = append(mru, s)
		}
	}
	if len(mru) > PreferredTypesLimit {
		mru = mru[:PreferredTypesLimit]
	}
	p.PreferredSetupTypes = mru
	p.touch()
}

// RecentHistory returns up to n entries, newest first.
func (p *Preferences) RecentHistory(n int) []HistoryEntry {
	entries := make([]HistoryEntry, 0, min(n, len(p.SetupHistory)))
	for i := len(p.SetupHistory) - 1; i >= 0 && len(entries) < n; i-- {
		entries = append(entries, p.SetupHistory[i])
	}
	return entries
}

func (p *Preferences) touch() {
	p.LastUpdated = time.Now().UTC()
}

func isKnownManager(m string) bool {
	for _, known := range KnownManagers {
		if m == known {
			return true
		}
	}
	return false
}
