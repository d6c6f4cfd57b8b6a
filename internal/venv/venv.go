// Package venv discovers Python interpreters, creates project virtual
// environments and validates the result before anything is installed
// into them.
package venv

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"typysetup/internal/registry"
)

// DirName is the environment directory created inside a project.
const DirName = "venv"

// probeTimeout bounds every interpreter validation probe.
const probeTimeout = 5 * time.Second

var versionOutputPattern = regexp.MustCompile(`Python (\d+\.\d+(?:\.\d+)?)`)

// Environment is a created (or discovered) virtual environment.
type Environment struct {
	Root          string
	Interpreter   string
	Pip           string
	PythonVersion string
}

// Creator builds and validates virtual environments.
type Creator struct {
	log *zap.Logger
}

func NewCreator(log *zap.Logger) *Creator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Creator{log: log}
}

// Path returns the environment root for a project directory.
func Path(projectDir string) string {
	return filepath.Join(projectDir, DirName)
}

// InterpreterPath returns the python executable inside an environment.
func InterpreterPath(root string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(root, "Scripts", "python.exe")
	}
	return filepath.Join(root, "bin", "python")
}

// PipPath returns the pip executable inside an environment.
func PipPath(root string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(root, "Scripts", "pip.exe")
	}
	return filepath.Join(root, "bin", "pip")
}

// versionLiteralPattern extracts the leading major.minor from a version
// request so a versioned executable name can be probed first; the full
// request may carry constraint syntax ("3.10+", "3.9-3.12").
var versionLiteralPattern = regexp.MustCompile(`^(\d+)\.(\d+)`)

// DiscoverPython finds a base interpreter satisfying the requested
// version, which uses the same syntax as template constraints: an exact
// major.minor, an open lower bound, or a range. Version-specific
// executable names are probed first, then the generic ones. With an
// empty version, the first working interpreter wins.
func DiscoverPython(ctx context.Context, pythonVersion string) (exe string, actualVersion string, err error) {
	var constraint registry.Constraint
	if pythonVersion != "" {
		constraint, err = registry.ParseConstraint(pythonVersion)
		if err != nil {
			return "", "", err
		}
	}

	var candidates []string
	if m := versionLiteralPattern.FindStringSubmatch(pythonVersion); m != nil {
		candidates = append(candidates, "python"+m[1]+"."+m[2], "python"+m[1])
	}
	candidates = append(candidates, "python", "python3")

	var tried []string
	for _, name := range candidates {
		path, lookErr := exec.LookPath(name)
		if lookErr != nil {
			continue
		}
		got, probeErr := interpreterVersion(ctx, path)
		if probeErr != nil {
			tried = append(tried, fmt.Sprintf("%s (%v)", path, probeErr))
			continue
		}
		if pythonVersion != "" && !constraint.Satisfies(got) {
			tried = append(tried, fmt.Sprintf("%s (is %s)", path, got))
			continue
		}
		return path, got, nil
	}
	if pythonVersion == "" {
		return "", "", fmt.Errorf("no python interpreter found on PATH")
	}
	return "", "", fmt.Errorf("no python %s interpreter found (tried %s)", pythonVersion, strings.Join(tried, ", "))
}

// Create builds the project's virtual environment with the requested
// interpreter version and validates it end to end. The environment is
// left in place on validation failure so the caller's rollback can
// remove it along with everything else.
func (c *Creator) Create(ctx context.Context, projectDir, pythonVersion string) (*Environment, error) {
	base, actual, err := DiscoverPython(ctx, pythonVersion)
	if err != nil {
		return nil, err
	}
	root := Path(projectDir)
	c.log.Info("creating virtual environment",
		zap.String("path", root),
		zap.String("interpreter", base),
		zap.String("python_version", actual))

	cmd := exec.CommandContext(ctx, base, "-m", "venv", "--upgrade-deps", root)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("create virtual environment: %w: %s", err, strings.TrimSpace(string(out)))
	}

	env := &Environment{
		Root:          root,
		Interpreter:   InterpreterPath(root),
		Pip:           PipPath(root),
		PythonVersion: actual,
	}
	if err := c.Validate(ctx, env); err != nil {
		return nil, err
	}
	return env, nil
}

// Validate runs the structure check and both executable probes.
func (c *Creator) Validate(ctx context.Context, env *Environment) error {
	if err := ValidateStructure(env.Root); err != nil {
		return err
	}
	if err := validateInterpreter(ctx, env); err != nil {
		return err
	}
	return validatePip(ctx, env)
}

// ValidateStructure checks the on-disk layout of an environment.
func ValidateStructure(root string) error {
	required := []string{
		filepath.Join(root, "pyvenv.cfg"),
		InterpreterPath(root),
		PipPath(root),
	}
	for _, path := range required {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("virtual environment incomplete: missing %s", path)
		}
	}
	return nil
}

func validateInterpreter(ctx context.Context, env *Environment) error {
	got, err := interpreterVersion(ctx, env.Interpreter)
	if err != nil {
		return fmt.Errorf("virtual environment interpreter not runnable: %w", err)
	}
	if env.PythonVersion != "" && !sameMinor(got, env.PythonVersion) {
		return fmt.Errorf("virtual environment runs python %s, expected %s", got, env.PythonVersion)
	}
	return nil
}

func validatePip(ctx context.Context, env *Environment) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if out, err := exec.CommandContext(probeCtx, env.Pip, "--version").CombinedOutput(); err != nil {
		return fmt.Errorf("pip not runnable in virtual environment: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func interpreterVersion(ctx context.Context, exe string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, exe, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("probe %s: %w", exe, err)
	}
	m := versionOutputPattern.FindStringSubmatch(string(out))
	if m == nil {
		return "", fmt.Errorf("unrecognized version output %q from %s", strings.TrimSpace(string(out)), exe)
	}
	return m[1], nil
}

// sameMinor compares the major.minor prefix of two versions.
func sameMinor(a, b string) bool {
	return minorPrefix(a) == minorPrefix(b)
}

func minorPrefix(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return v
	}
	return parts[0] + "." + parts[1]
}
