package wizard

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typysetup/internal/installer"
	"typysetup/internal/prefs"
	"typysetup/internal/project"
	"typysetup/internal/pyproject"
	"typysetup/internal/registry"
	"typysetup/internal/venv"
	"typysetup/internal/vscode"
)

// scriptPrompter pops scripted answers per prompt kind and falls back to
// the prompt's default once its script runs out.
type scriptPrompter struct {
	selects  []any
	multis   []any
	confirms []any
	inputs   []any
}

func pop(queue *[]any) (any, bool) {
	if len(*queue) == 0 {
		return nil, false
	}
	head := (*queue)[0]
	*queue = (*queue)[1:]
	return head, true
}

func (s *scriptPrompter) Select(_ string, _ []Option, defaultIndex int) (int, error) {
	if v, ok := pop(&s.selects); ok {
		if err, isErr := v.(error); isErr {
			return 0, err
		}
		return v.(int), nil
	}
	return defaultIndex, nil
}

func (s *scriptPrompter) MultiSelect(_ string, options []Option) ([]int, error) {
	if v, ok := pop(&s.multis); ok {
		if err, isErr := v.(error); isErr {
			return nil, err
		}
		return v.([]int), nil
	}
	var picked []int
	for i, opt := range options {
		if opt.Locked || opt.Default {
			picked = append(picked, i)
		}
	}
	return picked, nil
}

func (s *scriptPrompter) Confirm(_ string, defaultYes bool) (bool, error) {
	if v, ok := pop(&s.confirms); ok {
		if err, isErr := v.(error); isErr {
			return false, err
		}
		return v.(bool), nil
	}
	return defaultYes, nil
}

func (s *scriptPrompter) Input(_, defaultValue string, validate func(string) error) (string, error) {
	if v, ok := pop(&s.inputs); ok {
		if err, isErr := v.(error); isErr {
			return "", err
		}
		return v.(string), nil
	}
	if validate != nil {
		if err := validate(defaultValue); err != nil {
			return "", err
		}
	}
	return defaultValue, nil
}

type fakeEnvs struct {
	fail    bool
	calls   int
	version string
}

func (f *fakeEnvs) Create(_ context.Context, projectDir, pythonVersion string) (*venv.Environment, error) {
	f.calls++
	f.version = pythonVersion
	if f.fail {
		return nil, errors.New("no usable python interpreter")
	}
	root := venv.Path(projectDir)
	if err := os.MkdirAll(filepath.Join(root, "bin"), 0o755); err != nil {
		return nil, err
	}
	return &venv.Environment{
		Root:          root,
		Interpreter:   venv.InterpreterPath(root),
		Pip:           venv.PipPath(root),
		PythonVersion: "3.12.4",
	}, nil
}

type fakeInstaller struct {
	fail  bool
	specs []string
}

func (f *fakeInstaller) Install(_ context.Context, _, _, _ string, specs []string) ([]installer.Package, error) {
	f.specs = specs
	if f.fail {
		return nil, errors.New("resolver exploded")
	}
	packages := make([]installer.Package, 0, len(specs))
	for _, spec := range specs {
		packages = append(packages, installer.Package{Name: installer.SpecName(spec), Version: "1.0.0"})
	}
	return packages, nil
}

type harness struct {
	orch       *Orchestrator
	prefs      *prefs.Manager
	projects   *project.Store
	envs       *fakeEnvs
	installer  *fakeInstaller
	projectDir string
}

func newHarness(t *testing.T, p *scriptPrompter) *harness {
	t.Helper()
	reg, err := registry.Load("", nil)
	require.NoError(t, err)
	pm, err := prefs.NewManager(filepath.Join(t.TempDir(), "preferences.json"), nil)
	require.NoError(t, err)

	h := &harness{
		prefs:      pm,
		projects:   project.NewStore(nil),
		envs:       &fakeEnvs{},
		installer:  &fakeInstaller{},
		projectDir: filepath.Join(t.TempDir(), "myproj"),
	}
	h.orch = New(Deps{
		Registry:  reg,
		Prompter:  p,
		Prefs:     pm,
		Projects:  h.projects,
		Envs:      h.envs,
		Installer: h.installer,
		Editor:    vscode.NewGenerator(nil),
		Manifest:  pyproject.NewGenerator(nil),
		Out:       io.Discard,
	})
	return h
}

func TestRunSuccessEndToEnd(t *testing.T) {
	h := newHarness(t, &scriptPrompter{})

	cfg, err := h.orch.Run(context.Background(), h.projectDir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, project.StatusSuccess, cfg.Status)
	assert.Equal(t, "3.12.4", cfg.PythonVersion)
	assert.Equal(t, venv.Path(h.projectDir), cfg.VenvPath)
	assert.Equal(t, venv.InterpreterPath(cfg.VenvPath), cfg.PythonExecutable)
	assert.NotEmpty(t, cfg.Dependencies)
	assert.Contains(t, cfg.SelectedGroups, "core")
	assert.NotEmpty(t, cfg.MergedSettings)

	// Everything the run promises is on disk.
	assert.FileExists(t, project.ConfigPath(h.projectDir))
	assert.FileExists(t, filepath.Join(h.projectDir, "pyproject.toml"))
	assert.FileExists(t, filepath.Join(h.projectDir, ".gitignore"))
	assert.FileExists(t, filepath.Join(h.projectDir, ".vscode", "settings.json"))
	assert.DirExists(t, venv.Path(h.projectDir))

	saved, err := h.projects.Load(h.projectDir)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, project.StatusSuccess, saved.Status)

	p, err := h.prefs.Load()
	require.NoError(t, err)
	require.Len(t, p.SetupHistory, 1)
	assert.True(t, p.SetupHistory[0].Success)
	assert.Equal(t, saved.SetupType, p.PreferredSetupTypes[0], "completed template promoted in MRU")
	assert.False(t, p.FirstRun)
}

func TestEmptyVersionFallsBackToTemplateConstraint(t *testing.T) {
	reg, err := registry.Load("", nil)
	require.NoError(t, err)
	fastapi := -1
	for i, tpl := range reg.All() {
		if tpl.Slug == "fastapi" {
			fastapi = i
		}
	}
	require.GreaterOrEqual(t, fastapi, 0)

	h := newHarness(t, &scriptPrompter{
		selects: []any{fastapi},
		inputs:  []any{""},
	})

	cfg, err := h.orch.Run(context.Background(), h.projectDir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "fastapi", cfg.SetupType)
	assert.Equal(t, "3.10+", h.envs.version, "template requirement forwarded when no version was typed")
}

func TestRunEnvironmentFailureRollsBackAndRecordsHistory(t *testing.T) {
	h := newHarness(t, &scriptPrompter{})
	h.envs.fail = true

	cfg, err := h.orch.Run(context.Background(), h.projectDir)
	require.Error(t, err)
	assert.Nil(t, cfg)

	// The run created the project directory, so rollback removes it whole.
	assert.NoDirExists(t, h.projectDir)

	p, err := h.prefs.Load()
	require.NoError(t, err)
	require.Len(t, p.SetupHistory, 1)
	entry := p.SetupHistory[0]
	assert.False(t, entry.Success)
	assert.NotEmpty(t, entry.SetupType, "partial state still recorded")
	assert.Empty(t, p.PreferredSetupTypes, "failed template not promoted")
}

func TestRunInstallFailureRollsBack(t *testing.T) {
	h := newHarness(t, &scriptPrompter{})
	h.installer.fail = true

	_, err := h.orch.Run(context.Background(), h.projectDir)
	require.Error(t, err)

	assert.NoDirExists(t, h.projectDir)
	assert.False(t, h.projects.Exists(h.projectDir))

	p, err := h.prefs.Load()
	require.NoError(t, err)
	require.Len(t, p.SetupHistory, 1)
	assert.False(t, p.SetupHistory[0].Success)
}

func TestRunDeclineAtEnvironmentGateUnwindsWithoutHistory(t *testing.T) {
	// Confirms in order: proceed, create now, continue after venv.
	h := newHarness(t, &scriptPrompter{confirms: []any{true, true, false}})

	_, err := h.orch.Run(context.Background(), h.projectDir)
	assert.True(t, errors.Is(err, ErrCancelled))

	assert.NoDirExists(t, h.projectDir)
	assert.Equal(t, 1, h.envs.calls, "environment was created before the gate")

	p, err := h.prefs.Load()
	require.NoError(t, err)
	assert.Empty(t, p.SetupHistory, "cancellation is not a failure")
}

func TestRunCancelDuringPromptsLeavesNoTrace(t *testing.T) {
	h := newHarness(t, &scriptPrompter{selects: []any{ErrCancelled}})

	_, err := h.orch.Run(context.Background(), h.projectDir)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.NoDirExists(t, h.projectDir)
	assert.Zero(t, h.envs.calls)

	p, err := h.prefs.Load()
	require.NoError(t, err)
	assert.Empty(t, p.SetupHistory)
}

func TestRunExtensionCancelMeansNoneNotAbort(t *testing.T) {
	// First multi-select picks only the locked core group; the second,
	// for extensions, is backed out of.
	h := newHarness(t, &scriptPrompter{multis: []any{[]int{0}, ErrCancelled}})

	cfg, err := h.orch.Run(context.Background(), h.projectDir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.FileExists(t, filepath.Join(h.projectDir, ".vscode", "settings.json"))
	assert.NoFileExists(t, filepath.Join(h.projectDir, ".vscode", "extensions.json"),
		"backing out of the extension prompt installs none")
}

func TestRunRefusesCorruptProjectRecord(t *testing.T) {
	h := newHarness(t, &scriptPrompter{})
	path := project.ConfigPath(h.projectDir)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := h.orch.Run(context.Background(), h.projectDir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, project.ErrCorrupt))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(data), "corrupt record never auto-healed")
}

func TestRunPromptsBeforeOverwritingExistingProject(t *testing.T) {
	h := newHarness(t, &scriptPrompter{confirms: []any{false}})
	existing := project.New("myproj", h.projectDir, "flask", "3.11", "pip")
	existing.MarkSuccess()
	require.NoError(t, h.projects.Save(existing))

	_, err := h.orch.Run(context.Background(), h.projectDir)
	assert.True(t, errors.Is(err, ErrCancelled))

	saved, err := h.projects.Load(h.projectDir)
	require.NoError(t, err)
	assert.Equal(t, "flask", saved.SetupType, "existing record untouched")
}
