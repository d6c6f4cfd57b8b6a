// Package backup creates timestamped sibling copies of files that are
// about to be overwritten, and prunes old copies so generated-config
// churn does not accumulate unbounded backups.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"typysetup/internal/store"
)

// KeepDefault is how many backups of a single file are retained.
const KeepDefault = 3

const stampFormat = "20060102T150405"

// Manager writes and prunes timestamped backups next to their source
// files. Backup names look like "settings.json.backup.20250114T093012.000412Z".
type Manager struct {
	keep int
	log  *zap.Logger
}

func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{keep: KeepDefault, log: log}
}

// Create copies path to a timestamped sibling and prunes older copies.
// Returns "" with no error when path does not exist.
func (m *Manager) Create(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	dst := fmt.Sprintf("%s.backup.%s.%06dZ", path,
		time.Now().UTC().Format(stampFormat), time.Now().UTC().Nanosecond()/1000)
	if err := store.CopyFile(path, dst); err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	m.log.Debug("created backup", zap.String("backup", dst))
	m.prune(path)
	return dst, nil
}

// Restore copies a backup over its source path.
func (m *Manager) Restore(path, backupPath string) error {
	if err := store.CopyFile(backupPath, path); err != nil {
		return fmt.Errorf("restore %s from %s: %w", path, backupPath, err)
	}
	m.log.Info("restored from backup", zap.String("path", path), zap.String("backup", backupPath))
	return nil
}

// List returns existing backups of path, newest first. The timestamp in
// the name sorts lexically, so no stat calls are needed.
func (m *Manager) List(path string) []string {
	matches, err := filepath.Glob(path + ".backup.*")
	if err != nil {
		return nil
	}
	var backups []string
	for _, match := range matches {
		if strings.HasSuffix(match, "Z") {
			backups = append(backups, match)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups
}

func (m *Manager) prune(path string) {
	backups := m.List(path)
	for _, old := range backups[min(m.keep, len(backups)):] {
		if err := os.Remove(old); err != nil {
			m.log.Warn("could not prune backup", zap.String("backup", old), zap.Error(err))
		}
	}
}
