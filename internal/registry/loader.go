package registry

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var builtinTemplates embed.FS

// Registry holds the loaded templates, addressable by slug.
type Registry struct {
	bySlug map[string]*SetupType
	order  []string
	log    *zap.Logger
}

// Load builds a registry from the embedded templates, then overlays any
// *.yaml files found in overrideDir. An override file with a built-in
// slug replaces the built-in; a malformed override is skipped with a
// warning so one bad file never hides the working templates.
func Load(overrideDir string, log *zap.Logger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{bySlug: map[string]*SetupType{}, log: log}

	entries, err := fs.ReadDir(builtinTemplates, "templates")
	if err != nil {
		return nil, fmt.Errorf("read builtin templates: %w", err)
	}
	for _, e := range entries {
		data, err := builtinTemplates.ReadFile("templates/" + e.Name())
		if err != nil {
			return nil, err
		}
		t, err := parseTemplate(data)
		if err != nil {
			return nil, fmt.Errorf("builtin template %s: %w", e.Name(), err)
		}
		r.add(t)
	}

	if overrideDir != "" {
		if err := r.loadOverrides(overrideDir); err != nil {
			return nil, err
		}
	}

	sort.Strings(r.order)
	return r, nil
}

func (r *Registry) loadOverrides(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return err
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			r.log.Warn("could not read template override", zap.String("path", path), zap.Error(err))
			continue
		}
		t, err := parseTemplate(data)
		if err != nil {
			r.log.Warn("skipping invalid template override", zap.String("path", path), zap.Error(err))
			continue
		}
		r.add(t)
	}
	return nil
}

func (r *Registry) add(t *SetupType) {
	if _, exists := r.bySlug[t.Slug]; !exists {
		r.order = append(r.order, t.Slug)
	}
	r.bySlug[t.Slug] = t
}

func parseTemplate(data []byte) (*SetupType, error) {
	var t SetupType
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Get returns the template with the given slug.
func (r *Registry) Get(slug string) (*SetupType, bool) {
	t, ok := r.bySlug[slug]
	return t, ok
}

// All returns every template, sorted by slug.
func (r *Registry) All() []*SetupType {
	out := make([]*SetupType, 0, len(r.order))
	for _, slug := range r.order {
		out = append(out, r.bySlug[slug])
	}
	return out
}

// Search matches a case-insensitive substring against slug, name,
// description and tags.
func (r *Registry) Search(query string) []*SetupType {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return r.All()
	}
	var out []*SetupType
	for _, t := range r.All() {
		if strings.Contains(strings.ToLower(t.Slug), query) ||
			strings.Contains(strings.ToLower(t.Name), query) ||
			strings.Contains(strings.ToLower(t.Description), query) ||
			t.HasTag(query) {
			out = append(out, t)
		}
	}
	return out
}

// FindByTag returns templates carrying the tag.
func (r *Registry) FindByTag(tag string) []*SetupType {
	var out []*SetupType
	for _, t := range r.All() {
		if t.HasTag(tag) {
			out = append(out, t)
		}
	}
	return out
}

// FindByManager returns templates that support the package manager.
func (r *Registry) FindByManager(manager string) []*SetupType {
	var out []*SetupType
	for _, t := range r.All() {
		if t.SupportsManager(manager) {
			out = append(out, t)
		}
	}
	return out
}

// FindByPythonVersion returns templates whose interpreter constraint the
// given version satisfies. Templates without a constraint always match.
func (r *Registry) FindByPythonVersion(pythonVersion string) []*SetupType {
	var out []*SetupType
	for _, t := range r.All() {
		if t.PythonVersion == "" {
			out = append(out, t)
			continue
		}
		c, err := ParseConstraint(t.PythonVersion)
		if err != nil {
			continue
		}
		if c.Satisfies(pythonVersion) {
			out = append(out, t)
		}
	}
	return out
}
