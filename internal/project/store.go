package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"typysetup/internal/store"
)

const (
	// ConfigDirName is the per-project metadata directory.
	ConfigDirName  = ".typysetup"
	configFileName = "config.json"
)

// ErrCorrupt wraps any project record that exists but cannot be read.
// Unlike the user preference record, a project record is never reset
// automatically: it describes real installed state, and replacing it
// silently would lie about what the project contains.
var ErrCorrupt = errors.New("project configuration corrupt")

// Store reads and writes project records.
type Store struct {
	log *zap.Logger
}

func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{log: log}
}

// ConfigPath returns the record location for a project directory.
func ConfigPath(projectDir string) string {
	return filepath.Join(projectDir, ConfigDirName, configFileName)
}

// Exists reports whether the project has a record on disk, readable or
// not. A corrupt record still exists; Load is what distinguishes it.
func (s *Store) Exists(projectDir string) bool {
	_, err := os.Stat(ConfigPath(projectDir))
	return err == nil
}

// Load returns the project's record, or (nil, nil) when the project has
// none. A record that exists but cannot be parsed returns ErrCorrupt.
func (s *Store) Load(projectDir string) (*Configuration, error) {
	path := ConfigPath(projectDir)
	c := &Configuration{}
	err := store.LoadJSON(path, c)
	switch {
	case err == nil:
		if verr := c.Validate(); verr != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, verr)
		}
		return c, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	case errors.Is(err, store.ErrMalformed):
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	default:
		return nil, err
	}
}

// Save atomically writes the record into its project directory.
func (s *Store) Save(c *Configuration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return store.SaveJSON(ConfigPath(c.ProjectPath), c, s.log)
}
