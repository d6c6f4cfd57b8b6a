package registry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)$`)

// Constraint is a template's interpreter requirement: an exact
// major.minor version ("3.12"), an open lower bound ("3.10+"), or an
// inclusive range ("3.9-3.12").
type Constraint struct {
	min version
	max version // zero means unbounded
}

type version struct {
	major, minor int
}

func (v version) isZero() bool        { return v.major == 0 && v.minor == 0 }
func (v version) less(o version) bool { return v.major < o.major || (v.major == o.major && v.minor < o.minor) }

// ParseConstraint parses the constraint syntax used by templates.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "+"):
		v, err := parseVersion(strings.TrimSuffix(s, "+"))
		if err != nil {
			return Constraint{}, err
		}
		return Constraint{min: v}, nil
	case strings.Contains(s, "-"):
		lo, hi, _ := strings.Cut(s, "-")
		vlo, err := parseVersion(lo)
		if err != nil {
			return Constraint{}, err
		}
		vhi, err := parseVersion(hi)
		if err != nil {
			return Constraint{}, err
		}
		if vhi.less(vlo) {
			return Constraint{}, fmt.Errorf("invalid version range %q", s)
		}
		return Constraint{min: vlo, max: vhi}, nil
	default:
		v, err := parseVersion(s)
		if err != nil {
			return Constraint{}, err
		}
		return Constraint{min: v, max: v}, nil
	}
}

// Satisfies reports whether a concrete major.minor version meets the
// constraint. Patch components in the candidate are ignored.
func (c Constraint) Satisfies(candidate string) bool {
	parts := strings.SplitN(strings.TrimSpace(candidate), ".", 3)
	if len(parts) < 2 {
		return false
	}
	v, err := parseVersion(parts[0] + "." + parts[1])
	if err != nil {
		return false
	}
	if v.less(c.min) {
		return false
	}
	if !c.max.isZero() && c.max.less(v) {
		return false
	}
	return true
}

func parseVersion(s string) (version, error) {
	m := versionPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return version{}, fmt.Errorf("invalid python version %q", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	return version{major: major, minor: minor}, nil
}
