package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"typysetup/internal/gitignore"
	"typysetup/internal/installer"
	"typysetup/internal/prefs"
	"typysetup/internal/project"
	"typysetup/internal/pyproject"
	"typysetup/internal/registry"
	"typysetup/internal/rollback"
	"typysetup/internal/ux"
	"typysetup/internal/venv"
	"typysetup/internal/vscode"
)

// EnvironmentCreator builds the project's virtual environment.
type EnvironmentCreator interface {
	Create(ctx context.Context, projectDir, pythonVersion string) (*venv.Environment, error)
}

// DependencyInstaller installs package specs into the environment.
type DependencyInstaller interface {
	Install(ctx context.Context, manager, interpreter, projectDir string, specs []string) ([]installer.Package, error)
}

// EditorConfigGenerator writes merged editor configuration.
type EditorConfigGenerator interface {
	Generate(projectDir string, incoming vscode.Configuration) (*vscode.Result, error)
}

// ManifestGenerator writes the project manifest.
type ManifestGenerator interface {
	Generate(projectDir string, meta pyproject.Metadata, deps []string, pythonVersion string) (string, error)
}

// Deps are the orchestrator's collaborators. Tests substitute fakes for
// every side-effecting one.
type Deps struct {
	Registry  *registry.Registry
	Prompter  Prompter
	Prefs     *prefs.Manager
	Projects  *project.Store
	Envs      EnvironmentCreator
	Installer DependencyInstaller
	Editor    EditorConfigGenerator
	Manifest  ManifestGenerator
	Out       io.Writer
	Log       *zap.Logger
}

// Orchestrator runs one interactive setup from template selection to a
// persisted project record. Choices are collected first with no side
// effects; everything that touches the filesystem runs inside a
// rollback scope, so a failure or a late decline leaves the project
// directory as it was found.
type Orchestrator struct {
	deps        Deps
	log         *zap.Logger
	out         io.Writer
	interrupted atomic.Bool
}

func New(d Deps) *Orchestrator {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	return &Orchestrator{deps: d, log: d.Log, out: d.Out}
}

// session accumulates the user's choices across phases. Failure-path
// history is built from whatever it holds at the time.
type session struct {
	template      *registry.SetupType
	pythonVersion string
	manager       string
	groups        []string
	extensions    []string
	meta          pyproject.Metadata
}

// Run executes the wizard for projectDir. It returns the persisted
// project record on success, ErrCancelled when the user backs out, and
// the underlying error on failure. Failures and interrupts are recorded
// in setup history; cancellations are not.
func (o *Orchestrator) Run(ctx context.Context, projectDir string) (*project.Configuration, error) {
	projectDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.log.With(zap.String("run_id", runID), zap.String("project", projectDir))
	start := time.Now()

	// Intercept SIGINT for the duration of the run so an interrupt
	// unwinds the rollback scope instead of killing the process mid-write.
	// The previous disposition comes back when Run returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			o.interrupted.Store(true)
			cancel()
		case <-ctx.Done():
		}
	}()

	if existing, err := o.deps.Projects.Load(projectDir); err != nil {
		if errors.Is(err, project.ErrCorrupt) {
			return nil, fmt.Errorf("this project has an unreadable setup record; inspect or remove %s before retrying: %w",
				project.ConfigPath(projectDir), err)
		}
		return nil, err
	} else if existing != nil {
		ux.Warningf(o.out, "project already set up as %q on %s", existing.SetupType, existing.CreatedAt.Format("2006-01-02"))
		redo, err := o.deps.Prompter.Confirm("Run setup again over the existing project?", false)
		if err != nil || !redo {
			return nil, ErrCancelled
		}
	}

	st := &session{}
	cfg, err := o.run(ctx, log, projectDir, st)
	if err != nil {
		if o.interrupted.Load() {
			ux.Warningf(o.out, "interrupted, changes rolled back")
			o.recordFailure(log, projectDir, st, start)
			return nil, fmt.Errorf("setup interrupted")
		}
		if errors.Is(err, ErrCancelled) {
			log.Info("setup cancelled by user")
			return nil, ErrCancelled
		}
		ux.Errorf(o.out, "setup failed: %v", err)
		o.recordFailure(log, projectDir, st, start)
		return nil, err
	}

	if err := o.deps.Projects.Save(cfg); err != nil {
		log.Warn("could not save project record", zap.Error(err))
		ux.Warningf(o.out, "project created, but its setup record could not be saved: %v", err)
	}
	if err := o.deps.Prefs.RecordOutcome(o.historyEntry(projectDir, st, true, start)); err != nil {
		log.Warn("could not update preferences", zap.Error(err))
	}

	ux.Successf(o.out, "project %s ready in %s", st.meta.ProjectName, projectDir)
	log.Info("setup complete", zap.Duration("elapsed", time.Since(start)))
	return cfg, nil
}

func (o *Orchestrator) run(ctx context.Context, log *zap.Logger, projectDir string, st *session) (*project.Configuration, error) {
	if err := o.collectChoices(ctx, projectDir, st); err != nil {
		return nil, err
	}

	rb := rollback.New(log)
	cfg, err := o.scaffold(ctx, log, rb, projectDir, st)
	if err != nil {
		rb.Unwind()
		return nil, err
	}
	rb.Succeed()
	return cfg, nil
}

// collectChoices runs the prompt-only phases. Nothing on disk changes
// until it returns successfully.
func (o *Orchestrator) collectChoices(ctx context.Context, projectDir string, st *session) error {
	p, err := o.deps.Prefs.Load()
	if err != nil {
		return err
	}

	if err := o.chooseTemplate(ctx, p, st); err != nil {
		return err
	}
	if err := o.choosePythonVersion(ctx, p, st); err != nil {
		return err
	}
	if err := o.chooseManager(ctx, p, st); err != nil {
		return err
	}

	ux.Titlef(o.out, "\nPlan: %s, python %s, %s", st.template.Name, orAny(st.pythonVersion), st.manager)
	ok, err := o.deps.Prompter.Confirm("Proceed with these choices?", true)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}

	if err := o.chooseGroups(ctx, st); err != nil {
		return err
	}
	o.chooseExtensions(ctx, st)
	if err := o.collectMetadata(ctx, projectDir, st); err != nil {
		return err
	}

	ux.Titlef(o.out, "\nAbout to create %s with %d dependency group(s) and %d editor extension(s).",
		st.meta.ProjectName, len(st.groups), len(st.extensions))
	ok, err = o.deps.Prompter.Confirm("Create the project now?", true)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	return nil
}

func (o *Orchestrator) chooseTemplate(ctx context.Context, p *prefs.Preferences, st *session) error {
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}
	templates := orderByPreference(o.deps.Registry.All(), p.PreferredSetupTypes)
	if len(templates) == 0 {
		return fmt.Errorf("no project templates available")
	}
	options := make([]Option, len(templates))
	for i, t := range templates {
		options[i] = Option{Label: t.Name, Detail: t.Description}
	}
	idx, err := o.deps.Prompter.Select("Project template", options, 0)
	if err != nil {
		return err
	}
	st.template = templates[idx]
	return nil
}

func (o *Orchestrator) choosePythonVersion(ctx context.Context, p *prefs.Preferences, st *session) error {
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}
	def := p.PreferredPythonVersion
	validate := func(s string) error {
		if s == "" {
			return nil
		}
		if st.template.PythonVersion == "" {
			if _, err := registry.ParseConstraint(s); err != nil {
				return err
			}
			return nil
		}
		c, err := registry.ParseConstraint(st.template.PythonVersion)
		if err != nil {
			return err
		}
		if !c.Satisfies(s) {
			return fmt.Errorf("%s requires python %s", st.template.Name, st.template.PythonVersion)
		}
		return nil
	}
	if def != "" && validate(def) != nil {
		def = ""
	}
	prompt := "Python version (empty for any)"
	if st.template.PythonVersion != "" {
		prompt = fmt.Sprintf("Python version (%s requires %s)", st.template.Name, st.template.PythonVersion)
	}
	version, err := o.deps.Prompter.Input(prompt, def, validate)
	if err != nil {
		return err
	}
	st.pythonVersion = version
	return nil
}

func (o *Orchestrator) chooseManager(ctx context.Context, p *prefs.Preferences, st *session) error {
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}
	managers := st.template.Managers
	defaultIdx := 0
	for i, m := range managers {
		if m == p.PreferredManager {
			defaultIdx = i
		}
	}
	options := make([]Option, len(managers))
	for i, m := range managers {
		options[i] = Option{Label: m}
	}
	idx, err := o.deps.Prompter.Select("Package manager", options, defaultIdx)
	if err != nil {
		return err
	}
	st.manager = managers[idx]
	return nil
}

func (o *Orchestrator) chooseGroups(ctx context.Context, st *session) error {
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}
	groups := st.template.Groups()
	options := make([]Option, len(groups))
	for i, g := range groups {
		options[i] = Option{
			Label:   g,
			Detail:  strings.Join(st.template.Dependencies[g], ", "),
			Locked:  g == "core",
			Default: g != "optional",
		}
	}
	picked, err := o.deps.Prompter.MultiSelect("Dependency groups", options)
	if err != nil {
		return err
	}
	st.groups = st.groups[:0]
	for _, i := range picked {
		st.groups = append(st.groups, groups[i])
	}
	return nil
}

// chooseExtensions never aborts the run: backing out of the extension
// prompt means installing none, not cancelling the setup.
func (o *Orchestrator) chooseExtensions(ctx context.Context, st *session) {
	if ctx.Err() != nil {
		return
	}
	candidates := st.template.VSCode.Extensions
	if len(candidates) == 0 {
		return
	}
	options := make([]Option, len(candidates))
	for i, id := range candidates {
		options[i] = Option{Label: id, Default: true}
	}
	picked, err := o.deps.Prompter.MultiSelect("Editor extensions to recommend", options)
	if err != nil {
		st.extensions = nil
		return
	}
	st.extensions = st.extensions[:0]
	for _, i := range picked {
		st.extensions = append(st.extensions, candidates[i])
	}
}

func (o *Orchestrator) collectMetadata(ctx context.Context, projectDir string, st *session) error {
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}
	name, err := o.deps.Prompter.Input("Project name", filepath.Base(projectDir), pyproject.ValidateProjectName)
	if err != nil {
		return err
	}
	description, err := o.deps.Prompter.Input("Description (optional)", "", nil)
	if err != nil {
		return err
	}
	authorName, err := o.deps.Prompter.Input("Author name (optional)", "", nil)
	if err != nil {
		return err
	}
	authorEmail, err := o.deps.Prompter.Input("Author email (optional)", "", pyproject.ValidateEmail)
	if err != nil {
		return err
	}
	st.meta = pyproject.Metadata{
		ProjectName: name,
		Description: description,
		AuthorName:  authorName,
		AuthorEmail: authorEmail,
	}
	return nil
}

// scaffold runs every side-effecting phase. Each completed step
// registers its undo before the next one starts, so an unwind at any
// point removes exactly what this run created.
func (o *Orchestrator) scaffold(ctx context.Context, log *zap.Logger, rb *rollback.Context, projectDir string, st *session) (*project.Configuration, error) {
	cfg := project.New(st.meta.ProjectName, projectDir, st.template.Slug, st.pythonVersion, st.manager)
	cfg.SelectedGroups = append([]string(nil), st.groups...)
	cfg.SelectedExtensions = append([]string(nil), st.extensions...)
	if st.meta.Description != "" || st.meta.AuthorName != "" || st.meta.AuthorEmail != "" {
		cfg.Metadata = map[string]any{}
		if st.meta.Description != "" {
			cfg.Metadata["description"] = st.meta.Description
		}
		if st.meta.AuthorName != "" {
			cfg.Metadata["author"] = st.meta.AuthorName
		}
		if st.meta.AuthorEmail != "" {
			cfg.Metadata["author_email"] = st.meta.AuthorEmail
		}
	}

	if _, err := os.Stat(projectDir); os.IsNotExist(err) {
		if err := os.MkdirAll(projectDir, 0o755); err != nil {
			return nil, fmt.Errorf("create project directory: %w", err)
		}
		rb.Register("remove project directory", func() error { return os.RemoveAll(projectDir) })
	}

	if err := o.generateEditorConfig(rb, projectDir, st, cfg); err != nil {
		return nil, err
	}

	env, err := o.createEnvironment(ctx, rb, projectDir, st)
	if err != nil {
		return nil, err
	}
	cfg.PythonVersion = env.PythonVersion
	cfg.PythonExecutable = env.Interpreter
	cfg.VenvPath = env.Root

	ok, err := o.deps.Prompter.Confirm("Virtual environment ready. Continue with dependency installation?", true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCancelled
	}

	if created, err := gitignore.Write(projectDir, st.template.GitignoreExtra); err != nil {
		log.Warn("could not write .gitignore", zap.Error(err))
	} else if created {
		rb.Register("remove .gitignore", func() error {
			return os.Remove(filepath.Join(projectDir, gitignore.FileName))
		})
	}

	if err := o.generateManifest(rb, projectDir, st); err != nil {
		return nil, err
	}

	if err := o.installDependencies(ctx, env, projectDir, st, cfg); err != nil {
		return nil, err
	}

	ok, err = o.deps.Prompter.Confirm("Finalize project setup?", true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCancelled
	}

	cfg.MarkSuccess()
	return cfg, nil
}

func (o *Orchestrator) generateEditorConfig(rb *rollback.Context, projectDir string, st *session, cfg *project.Configuration) error {
	incoming := vscode.FromTemplate(st.template.VSCode.Settings, st.extensions, st.template.VSCode.LaunchConfigs)
	if incoming.IsEmpty() {
		return nil
	}
	vsDir := vscode.Dir(projectDir)
	_, statErr := os.Stat(vsDir)
	dirExisted := statErr == nil

	res, err := o.deps.Editor.Generate(projectDir, incoming)
	if err != nil {
		return fmt.Errorf("generate editor configuration: %w", err)
	}
	if !dirExisted {
		rb.Register("remove editor configuration", func() error { return os.RemoveAll(vsDir) })
	}
	cfg.MergedSettings = res.Merged.Settings
	for _, key := range vscode.OverrideKeys(res.Overrides) {
		ux.Warningf(o.out, "editor setting %q replaced (was %v)", key, res.Overrides[key].Old)
	}
	ux.Successf(o.out, "editor configuration written (%d file(s))", len(res.Written))
	return nil
}

func (o *Orchestrator) createEnvironment(ctx context.Context, rb *rollback.Context, projectDir string, st *session) (*venv.Environment, error) {
	envRoot := venv.Path(projectDir)
	_, statErr := os.Stat(envRoot)
	existed := statErr == nil

	// An empty version request still has to honor the template's
	// interpreter requirement.
	version := st.pythonVersion
	if version == "" {
		version = st.template.PythonVersion
	}

	fmt.Fprintln(o.out, "Creating virtual environment...")
	env, err := o.deps.Envs.Create(ctx, projectDir, version)
	if !existed {
		rb.Register("remove virtual environment", func() error { return os.RemoveAll(envRoot) })
	}
	if err != nil {
		return nil, fmt.Errorf("create virtual environment: %w", err)
	}
	// Record the resolved version so history and preferences carry what
	// actually got installed, not the possibly-empty request. Trimmed to
	// major.minor so it stays usable as a default and a constraint.
	st.pythonVersion = minorVersion(env.PythonVersion)
	ux.Successf(o.out, "virtual environment ready (python %s)", env.PythonVersion)
	return env, nil
}

func (o *Orchestrator) generateManifest(rb *rollback.Context, projectDir string, st *session) error {
	manifestPath := filepath.Join(projectDir, pyproject.FileName)
	_, statErr := os.Stat(manifestPath)
	existed := statErr == nil

	path, err := o.deps.Manifest.Generate(projectDir, st.meta, st.template.Dependencies["core"], st.pythonVersion)
	if err != nil {
		return fmt.Errorf("generate pyproject.toml: %w", err)
	}
	if !existed {
		rb.Register("remove pyproject.toml", func() error { return os.Remove(path) })
	}
	ux.Successf(o.out, "wrote %s", filepath.Base(path))
	return nil
}

func (o *Orchestrator) installDependencies(ctx context.Context, env *venv.Environment, projectDir string, st *session, cfg *project.Configuration) error {
	specs := st.template.PackagesFor(st.groups)
	if len(specs) == 0 {
		return nil
	}
	groupOf := map[string]string{}
	for _, g := range st.groups {
		for _, spec := range st.template.Dependencies[g] {
			name := installer.SpecName(spec)
			if _, taken := groupOf[name]; !taken {
				groupOf[name] = g
			}
		}
	}

	fmt.Fprintf(o.out, "Installing %d package(s) with %s...\n", len(specs), st.manager)
	packages, err := o.deps.Installer.Install(ctx, st.manager, env.Interpreter, projectDir, specs)
	if err != nil {
		return fmt.Errorf("install dependencies: %w", err)
	}
	for _, pkg := range packages {
		cfg.AddDependency(pkg.Name, pkg.Version, st.manager, groupOf[pkg.Name])
	}
	ux.Successf(o.out, "installed %d package(s)", len(packages))
	return nil
}

func (o *Orchestrator) recordFailure(log *zap.Logger, projectDir string, st *session, start time.Time) {
	if err := o.deps.Prefs.RecordHistory(o.historyEntry(projectDir, st, false, start)); err != nil {
		log.Warn("could not record setup history", zap.Error(err))
	}
}

func (o *Orchestrator) historyEntry(projectDir string, st *session, success bool, start time.Time) prefs.HistoryEntry {
	e := prefs.HistoryEntry{
		Timestamp:       time.Now().UTC(),
		ProjectPath:     projectDir,
		ProjectName:     st.meta.ProjectName,
		PythonVersion:   st.pythonVersion,
		PackageManager:  st.manager,
		Success:         success,
		DurationSeconds: time.Since(start).Seconds(),
	}
	if st.template != nil {
		e.SetupType = st.template.Slug
	}
	return e
}

func orderByPreference(templates []*registry.SetupType, preferred []string) []*registry.SetupType {
	rank := map[string]int{}
	for i, slug := range preferred {
		rank[slug] = i
	}
	ordered := make([]*registry.SetupType, len(templates))
	copy(ordered, templates)
	// Stable: preferred templates by recency, the rest in registry order.
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, iok := rank[ordered[i].Slug]
		rj, jok := rank[ordered[j].Slug]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		default:
			return false
		}
	})
	return ordered
}

func orAny(version string) string {
	if version == "" {
		return "any"
	}
	return version
}

func minorVersion(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return v
	}
	return parts[0] + "." + parts[1]
}
