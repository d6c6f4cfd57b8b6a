package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"typysetup/internal/store"
)

const (
	dirName  = ".typysetup"
	fileName = "preferences.json"
)

// Manager loads and persists the user preference record. A record that
// cannot be read or fails validation is quarantined under a timestamped
// name and replaced with defaults; permission failures are surfaced
// instead, never papered over with a reset.
type Manager struct {
	mu   sync.Mutex
	path string
	log  *zap.Logger
}

// NewManager returns a manager for the record at path, or the per-user
// default location when path is empty.
func NewManager(path string, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return &Manager{path: path, log: log}, nil
}

// DefaultPath is ~/.typysetup/preferences.json, or
// %APPDATA%\typysetup\preferences.json on Windows.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// ConfigDir is the per-user directory holding preferences and logs.
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("resolve config directory: %w", err)
		}
		return filepath.Join(base, "typysetup"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Path returns the record location.
func (m *Manager) Path() string { return m.path }

// Load returns the preference record, creating and persisting defaults
// when no record exists and resetting when the record is unreadable or
// invalid. The returned record is always usable.
func (m *Manager) Load() (*Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

func (m *Manager) load() (*Preferences, error) {
	p := &Preferences{}
	err := store.LoadJSON(m.path, p)
	switch {
	case err == nil:
		if verr := p.Validate(); verr != nil {
			m.log.Warn("preference record invalid, resetting", zap.Error(verr))
			return m.resetToDefaults()
		}
		return p, nil
	case errors.Is(err, store.ErrNotFound):
		m.log.Info("no preference record, creating defaults", zap.String("path", m.path))
		p = Default()
		if serr := store.SaveJSON(m.path, p, m.log); serr != nil {
			return nil, serr
		}
		return p, nil
	case errors.Is(err, store.ErrMalformed):
		m.log.Warn("preference record unreadable, resetting", zap.Error(err))
		return m.resetToDefaults()
	default:
		return nil, err
	}
}

func (m *Manager) resetToDefaults() (*Preferences, error) {
	store.QuarantineCorrupt(m.path, m.log)
	p := Default()
	if err := store.SaveJSON(m.path, p, m.log); err != nil {
		return nil, err
	}
	return p, nil
}

// Save persists p, refreshing its last-updated stamp.
func (m *Manager) Save(p *Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.touch()
	return store.SaveJSON(m.path, p, m.log)
}

// UpdateField sets one named preference field and persists the record.
// Values are validated against the field's allowed set before anything
// is written.
func (m *Manager) UpdateField(field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.load()
	if err != nil {
		return err
	}
	switch field {
	case "preferred_manager":
		if !isKnownManager(value) {
			return fmt.Errorf("unknown package manager %q (expected one of %v)", value, KnownManagers)
		}
		p.PreferredManager = value
	case "preferred_python_version":
		p.PreferredPythonVersion = value
	case "vscode_config_merge_mode":
		if value != MergeModeMerge {
			return fmt.Errorf("unknown merge mode %q", value)
		}
		p.VSCodeMergeMode = value
	default:
		return fmt.Errorf("unknown preference field %q", field)
	}
	p.touch()
	return store.SaveJSON(m.path, p, m.log)
}

// RecordHistory appends one run outcome to the bounded history and
// persists the record.
func (m *Manager) RecordHistory(e HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.load()
	if err != nil {
		return err
	}
	p.AddHistory(e)
	return store.SaveJSON(m.path, p, m.log)
}

// RecordOutcome appends a history entry and, additionally, folds the
// run's choices back into the default answers: the template is promoted
// in the MRU list and the chosen manager and interpreter version become
// the new defaults. The first-run flag clears on the first recorded run.
func (m *Manager) RecordOutcome(e HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.load()
	if err != nil {
		return err
	}
	p.AddHistory(e)
	if e.SetupType != "" {
		p.PromoteSetupType(e.SetupType)
	}
	if isKnownManager(e.PackageManager) {
		p.PreferredManager = e.PackageManager
	}
	if e.PythonVersion != "" {
		p.PreferredPythonVersion = e.PythonVersion
	}
	p.FirstRun = false
	return store.SaveJSON(m.path, p, m.log)
}

// Reset replaces the record with defaults after copying the current
// record to a timestamped backup. Returns the backup path, or "" when
// there was nothing to back up.
func (m *Manager) Reset() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	backupPath := ""
	if _, err := os.Stat(m.path); err == nil {
		backupPath = fmt.Sprintf("%s.backup_%s", m.path, time.Now().Format("20060102_150405"))
		if err := store.CopyFile(m.path, backupPath); err != nil {
			return "", fmt.Errorf("back up preferences before reset: %w", err)
		}
	}
	if err := store.SaveJSON(m.path, Default(), m.log); err != nil {
		return "", err
	}
	m.log.Info("preferences reset to defaults", zap.String("backup", backupPath))
	return backupPath, nil
}
