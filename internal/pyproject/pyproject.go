// Package pyproject writes a PEP 621 pyproject.toml for a freshly
// scaffolded project. An existing manifest is backed up before being
// replaced and restored if the write fails.
package pyproject

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"typysetup/internal/backup"
)

// FileName is the manifest written into the project root.
const FileName = "pyproject.toml"

// InitialVersion is the version stamped into new manifests.
const InitialVersion = "0.1.0"

var (
	projectNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	emailPattern       = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Metadata is what the wizard collects about the project being created.
type Metadata struct {
	ProjectName string
	Description string
	AuthorName  string
	AuthorEmail string
}

// Validate checks the fields the manifest format constrains. Description
// and author are optional; an email is validated only when present.
func (m Metadata) Validate() error {
	if err := ValidateProjectName(m.ProjectName); err != nil {
		return err
	}
	if m.AuthorEmail != "" && !emailPattern.MatchString(m.AuthorEmail) {
		return fmt.Errorf("invalid author email %q", m.AuthorEmail)
	}
	return nil
}

// ValidateProjectName enforces the distribution-name shape PEP 508
// accepts.
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name is required")
	}
	if !projectNamePattern.MatchString(name) {
		return fmt.Errorf("invalid project name %q (use letters, digits, '.', '_' and '-')", name)
	}
	return nil
}

// ValidateEmail reports whether s looks like an email address. Used by
// prompt-level validation before Metadata is assembled.
func ValidateEmail(s string) error {
	if s != "" && !emailPattern.MatchString(s) {
		return fmt.Errorf("invalid email address %q", s)
	}
	return nil
}

type author struct {
	Name  string `toml:"name"`
	Email string `toml:"email,omitempty"`
}

type projectTable struct {
	Name           string   `toml:"name"`
	Version        string   `toml:"version"`
	Description    string   `toml:"description,omitempty"`
	RequiresPython string   `toml:"requires-python,omitempty"`
	Authors        []author `toml:"authors,omitempty"`
	Dependencies   []string `toml:"dependencies"`
}

type document struct {
	Project projectTable `toml:"project"`
}

// Generator writes manifests.
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

// Generate writes the manifest into projectDir and returns its path. The
// dependency specs are the project's core runtime requirements;
// pythonVersion becomes an open ">=" bound when set.
func (g *Generator) Generate(projectDir string, meta Metadata, dependencies []string, pythonVersion string) (string, error) {
	if err := meta.Validate(); err != nil {
		return "", err
	}

	doc := document{Project: projectTable{
		Name:         normalizeDistName(meta.ProjectName),
		Version:      InitialVersion,
		Description:  meta.Description,
		Dependencies: dependencies,
	}}
	if doc.Project.Dependencies == nil {
		doc.Project.Dependencies = []string{}
	}
	if pythonVersion != "" {
		doc.Project.RequiresPython = ">=" + pythonVersion
	}
	if meta.AuthorName != "" || meta.AuthorEmail != "" {
		doc.Project.Authors = []author{{Name: meta.AuthorName, Email: meta.AuthorEmail}}
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	path := filepath.Join(projectDir, FileName)
	bak, err := g.backups.Create(path)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		if bak != "" {
			if rerr := g.backups.Restore(path, bak); rerr != nil {
				g.log.Error("could not restore manifest", zap.String("path", path), zap.Error(rerr))
			}
		}
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// normalizeDistName lowercases and collapses separator runs to single
// hyphens, the normalized form install tools compare against.
func normalizeDistName(name string) string {
	var b strings.Builder
	lastSep := false
	for _, r := range strings.ToLower(name) {
		if r == '.' || r == '_' || r == '-' {
			if !lastSep {
				b.WriteByte('-')
			}
			lastSep = true
			continue
		}
		lastSep = false
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "-")
}
