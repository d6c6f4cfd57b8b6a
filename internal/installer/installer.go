// Package installer runs the chosen package manager against a project's
// virtual environment and reports what actually got installed, with the
// resolved versions.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Per-manager timeouts for one install invocation. Poetry resolves its
// own lockfile and routinely needs longer.
const (
	TimeoutPip    = 600 * time.Second
	TimeoutUV     = 600 * time.Second
	TimeoutPoetry = 900 * time.Second
)

// Package is one installed distribution with its resolved version.
type Package struct {
	Name    string
	Version string
}

// Installer shells out to pip, uv or poetry.
type Installer struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Installer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Installer{log: log}
}

// Install installs the package specs into the environment behind
// interpreter using the named manager, returning the resolved packages.
// A timeout or non-zero exit is an installation failure; nothing is
// retried.
func (i *Installer) Install(ctx context.Context, manager, interpreter, projectDir string, specs []string) ([]Package, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	var (
		out []byte
		err error
	)
	switch manager {
	case "pip":
		out, err = i.run(ctx, TimeoutPip, projectDir, interpreter, append([]string{"-m", "pip", "install"}, specs...)...)
	case "uv":
		out, err = i.run(ctx, TimeoutUV, projectDir, "uv", append([]string{"pip", "install", "--python", interpreter}, specs...)...)
	case "poetry":
		out, err = i.poetryInstall(ctx, projectDir)
	default:
		return nil, fmt.Errorf("unknown package manager %q", manager)
	}
	if err != nil {
		return nil, err
	}

	installed := parseInstalled(string(out))
	return i.resolveVersions(ctx, interpreter, specs, installed), nil
}

// poetryInstall points poetry at the project's existing environment
// instead of letting it create its own, then installs from
// pyproject.toml.
func (i *Installer) poetryInstall(ctx context.Context, projectDir string) ([]byte, error) {
	if _, err := i.run(ctx, TimeoutPoetry, projectDir, "poetry", "config", "virtualenvs.create", "false", "--local"); err != nil {
		return nil, err
	}
	return i.run(ctx, TimeoutPoetry, projectDir, "poetry", "install", "--no-interaction")
}

func (i *Installer) run(ctx context.Context, timeout time.Duration, dir, exe string, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	i.log.Info("running package manager", zap.String("command", exe+" "+strings.Join(args, " ")))
	cmd := exec.CommandContext(runCtx, exe, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s timed out after %s", exe, timeout)
		}
		return nil, fmt.Errorf("%s failed: %w: %s", exe, err, tail(string(out), 2000))
	}
	return out, nil
}

// resolveVersions maps the requested specs to resolved versions, first
// from the install output, falling back to a "pip show" probe for
// anything the output did not mention.
func (i *Installer) resolveVersions(ctx context.Context, interpreter string, specs []string, installed map[string]string) []Package {
	packages := make([]Package, 0, len(specs))
	for _, spec := range specs {
		name := SpecName(spec)
		version, ok := installed[normalizeName(name)]
		if !ok {
			version = i.showVersion(ctx, interpreter, name)
		}
		packages = append(packages, Package{Name: name, Version: version})
	}
	return packages
}

func (i *Installer) showVersion(ctx context.Context, interpreter, name string) string {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, interpreter, "-m", "pip", "show", name).Output()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		if v, ok := strings.CutPrefix(line, "Version:"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// pip:    "Successfully installed fastapi-0.115.0 pydantic-2.7.1"
// uv:     " + fastapi==0.115.0"
// poetry: "  - Installing fastapi (0.115.0)"
var (
	pipInstalledPattern    = regexp.MustCompile(`Successfully installed (.+)`)
	uvInstalledPattern     = regexp.MustCompile(`(?m)^\s*\+\s+(\S+)==(\S+)`)
	poetryInstalledPattern = regexp.MustCompile(`(?m)Installing\s+(\S+)\s+\((\S+?)\)`)
)

// parseInstalled extracts name to version mappings from any of the three
// managers' install output. Names are normalized so lookups survive the
// underscore/hyphen mismatch.
func parseInstalled(output string) map[string]string {
	installed := map[string]string{}

	if m := pipInstalledPattern.FindStringSubmatch(output); m != nil {
		for _, entry := range strings.Fields(m[1]) {
			at := strings.LastIndex(entry, "-")
			if at <= 0 {
				continue
			}
			installed[normalizeName(entry[:at])] = entry[at+1:]
		}
	}
	for _, m := range uvInstalledPattern.FindAllStringSubmatch(output, -1) {
		installed[normalizeName(m[1])] = m[2]
	}
	for _, m := range poetryInstalledPattern.FindAllStringSubmatch(output, -1) {
		installed[normalizeName(m[1])] = m[2]
	}
	return installed
}

var specNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+`)

// SpecName extracts the distribution name from a requirement spec like
// "uvicorn[standard]>=0.29".
func SpecName(spec string) string {
	spec = strings.TrimSpace(spec)
	if at := strings.IndexByte(spec, '['); at >= 0 {
		spec = spec[:at]
	}
	return specNamePattern.FindString(spec)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
