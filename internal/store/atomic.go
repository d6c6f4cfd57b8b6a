// Package store implements the durable JSON record layer shared by the
// user-preference and project-configuration stores. Saves go through a
// sibling temp file and an atomic rename, so a reader never observes a
// partially written record; the previous content is kept in a single
// rolling ".backup" sibling, and unreadable records can be quarantined
// under a timestamped "corrupted_" name before being replaced.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Error kinds surfaced by Load/Save. Callers distinguish them with
// errors.Is: not-found is recoverable by defaulting, malformed content is
// recoverable only where the owning store allows a reset, and permission
// failures are never recovered automatically.
var (
	ErrNotFound   = errors.New("record not found")
	ErrMalformed  = errors.New("record malformed")
	ErrPermission = errors.New("permission denied")
)

const (
	tmpSuffix    = ".tmp"
	backupSuffix = ".backup"

	// corruptTimeFormat keeps quarantine names distinct from the rolling
	// backup and sortable by creation time.
	corruptTimeFormat = "20060102_150405"
)

// EnsureDir creates the directory (and parents) holding a record file.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return classify(fmt.Errorf("create directory %s: %w", dir, err))
	}
	return nil
}

// SaveJSON atomically writes v as indented JSON to path. An existing file
// is first copied to the rolling backup; a backup failure is logged but
// does not abort the save. On any write failure the temp file is removed
// and the original file is left untouched.
func SaveJSON(path string, v any, log *zap.Logger) error {
	log = ensureLogger(log)

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		if err := CopyFile(path, path+backupSuffix); err != nil {
			log.Warn("could not create rolling backup", zap.String("path", path), zap.Error(err))
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')

	tmp := path + tmpSuffix
	if err := writeAndSync(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return classify(fmt.Errorf("write %s: %w", tmp, err))
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return classify(fmt.Errorf("rename %s: %w", tmp, err))
	}
	return nil
}

// LoadJSON reads the record at path into v. Unknown fields count as
// malformed content: a record written by a future schema triggers the
// caller's reset policy rather than a silent partial decode.
func LoadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return classify(fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformed, path, err)
	}
	return nil
}

// QuarantineCorrupt copies an unreadable record aside under a timestamped
// "corrupted_" suffix so a reset never destroys the only copy. Returns the
// quarantine path, or "" when the record does not exist.
func QuarantineCorrupt(path string, log *zap.Logger) string {
	log = ensureLogger(log)

	if _, err := os.Stat(path); err != nil {
		return ""
	}
	dst := fmt.Sprintf("%s.corrupted_%s", path, time.Now().Format(corruptTimeFormat))
	if err := CopyFile(path, dst); err != nil {
		log.Warn("could not quarantine corrupt record", zap.String("path", path), zap.Error(err))
		return ""
	}
	log.Info("quarantined corrupt record", zap.String("backup", dst))
	return dst
}

// CopyFile copies src to dst, truncating dst if present.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return classify(err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return classify(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeAndSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// classify maps OS-level permission failures onto ErrPermission so stores
// can surface them instead of resetting.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}
	return err
}

func ensureLogger(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
