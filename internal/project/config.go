// Package project persists the per-project setup record under
// .typysetup/config.json: which template built the project, with what
// interpreter and manager, which dependencies were installed, and how
// the run ended.
package project

import (
	"fmt"
	"time"
)

// Setup statuses. A run starts as running, and a record left in that
// state means the process died mid-setup.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPartial = "partial"
)

// SchemaVersion is written into every project record.
const SchemaVersion = "1.0"

// Dependency is one installed package with its resolved version.
type Dependency struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	InstalledBy string `json:"installed_by"`
	FromGroup   string `json:"from_group,omitempty"`
}

// Configuration is the full per-project record.
type Configuration struct {
	ProjectName        string         `json:"project_name"`
	ProjectPath        string         `json:"project_path"`
	SetupType          string         `json:"setup_type"`
	PythonVersion      string         `json:"python_version"`
	PythonExecutable   string         `json:"python_executable,omitempty"`
	VenvPath           string         `json:"venv_path,omitempty"`
	PackageManager     string         `json:"package_manager"`
	Status             string         `json:"status"`
	Dependencies       []Dependency   `json:"dependencies"`
	SelectedGroups     []string       `json:"dependency_selections,omitempty"`
	SelectedExtensions []string       `json:"selected_extensions,omitempty"`
	MergedSettings     map[string]any `json:"vscode_settings,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	Version            string         `json:"version"`
}

// New starts a record for a run in progress.
func New(projectName, projectPath, setupType, pythonVersion, packageManager string) *Configuration {
	return &Configuration{
		ProjectName:    projectName,
		ProjectPath:    projectPath,
		SetupType:      setupType,
		PythonVersion:  pythonVersion,
		PackageManager: packageManager,
		Status:         StatusRunning,
		Dependencies:   []Dependency{},
		CreatedAt:      time.Now().UTC(),
		Version:        SchemaVersion,
	}
}

// AddDependency appends an installed package to the record.
func (c *Configuration) AddDependency(name, version, installedBy, fromGroup string) {
	c.Dependencies = append(c.Dependencies, Dependency{
		Name:        name,
		Version:     version,
		InstalledBy: installedBy,
		FromGroup:   fromGroup,
	})
}

// MarkSuccess finalizes the record for a completed run.
func (c *Configuration) MarkSuccess() {
	c.Status = StatusSuccess
	now := time.Now().UTC()
	c.CompletedAt = &now
}

// MarkFailed finalizes the record for a failed run.
func (c *Configuration) MarkFailed() {
	c.Status = StatusFailed
	now := time.Now().UTC()
	c.CompletedAt = &now
}

// Validate rejects records with an unknown status or missing identity
// fields.
func (c *Configuration) Validate() error {
	switch c.Status {
	case StatusPending, StatusRunning, StatusSuccess, StatusFailed, StatusPartial:
	default:
		return fmt.Errorf("unknown status %q", c.Status)
	}
	if c.ProjectPath == "" {
		return fmt.Errorf("missing project_path")
	}
	if c.SetupType == "" {
		return fmt.Errorf("missing setup_type")
	}
	return nil
}
