// Package registry loads and validates project templates: named bundles
// of dependencies, editor configuration and metadata that the wizard
// offers as setup types. A default set ships embedded in the binary and
// can be overridden or extended from a directory of YAML files.
package registry

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Group names with a fixed display and install position. Any other group
// sorts alphabetically after these.
var wellKnownGroups = []string{"core", "dev", "testing", "typing", "docs", "optional"}

// VSCodeFragment is the editor configuration a template contributes.
type VSCodeFragment struct {
	Settings      map[string]any   `yaml:"settings" json:"settings,omitempty"`
	Extensions    []string         `yaml:"extensions" json:"extensions,omitempty"`
	LaunchConfigs []map[string]any `yaml:"launch_configs" json:"launch_configs,omitempty"`
}

// SetupType is one project template.
type SetupType struct {
	Slug           string              `yaml:"slug" json:"slug"`
	Name           string              `yaml:"name" json:"name"`
	Description    string              `yaml:"description" json:"description"`
	Tags           []string            `yaml:"tags" json:"tags,omitempty"`
	PythonVersion  string              `yaml:"python_version" json:"python_version"`
	Managers       []string            `yaml:"managers" json:"managers"`
	Dependencies   map[string][]string `yaml:"dependencies" json:"dependencies"`
	VSCode         VSCodeFragment      `yaml:"vscode" json:"vscode,omitempty"`
	GitignoreExtra []string            `yaml:"gitignore_extra" json:"gitignore_extra,omitempty"`
}

// Validate rejects templates that would break the wizard at prompt time.
func (t *SetupType) Validate() error {
	if !slugPattern.MatchString(t.Slug) {
		return fmt.Errorf("invalid slug %q", t.Slug)
	}
	if t.Name == "" {
		return fmt.Errorf("template %s: missing name", t.Slug)
	}
	if len(t.Dependencies["core"]) == 0 {
		return fmt.Errorf("template %s: missing core dependency group", t.Slug)
	}
	if len(t.Managers) == 0 {
		return fmt.Errorf("template %s: no package managers listed", t.Slug)
	}
	for _, m := range t.Managers {
		switch m {
		case "uv", "pip", "poetry":
		default:
			return fmt.Errorf("template %s: unknown package manager %q", t.Slug, m)
		}
	}
	if t.PythonVersion != "" {
		if _, err := ParseConstraint(t.PythonVersion); err != nil {
			return fmt.Errorf("template %s: %w", t.Slug, err)
		}
	}
	return nil
}

// Groups returns the template's dependency group names in display order:
// well-known groups first, then the rest alphabetically.
func (t *SetupType) Groups() []string {
	rank := make(map[string]int, len(wellKnownGroups))
	for i, g := range wellKnownGroups {
		rank[g] = i
	}
	groups := make([]string, 0, len(t.Dependencies))
	for g := range t.Dependencies {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		ri, iKnown := rank[groups[i]]
		rj, jKnown := rank[groups[j]]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown:
			return true
		case jKnown:
			return false
		default:
			return groups[i] < groups[j]
		}
	})
	return groups
}

// PackagesFor flattens the selected groups into one install list,
// preserving group order and deduplicating package specs.
func (t *SetupType) PackagesFor(groups []string) []string {
	seen := map[string]bool{}
	var packages []string
	for _, g := range groups {
		for _, spec := range t.Dependencies[g] {
			if !seen[spec] {
				seen[spec] = true
				packages = append(packages, spec)
			}
		}
	}
	return packages
}

// SupportsManager reports whether the template works with the manager.
func (t *SetupType) SupportsManager(manager string) bool {
	for _, m := range t.Managers {
		if m == manager {
			return true
		}
	}
	return false
}

// HasTag matches case-insensitively.
func (t *SetupType) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if strings.EqualFold(have, tag) {
			return true
		}
	}
	return false
}
