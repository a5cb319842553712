// SPDX-License-Identifier: MPL-2.0

// Package specifier resolves interpreter version constraints to the set of
// major interpreter generations they allow.
package specifier

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrNoSupportedPython reports that a constraint excludes every interpreter
// generation the backend can target.
var ErrNoSupportedPython = errors.New("no supported python generation")

// Support reports which interpreter generations a constraint allows.
type Support struct {
	Py2 bool
	Py3 bool
}

// Tag returns the interpreter tag spelling used in compatibility tags.
func (s Support) Tag() string {
	switch {
	case s.Py2 && s.Py3:
		return "py2.py3"
	case s.Py2:
		return "py2"
	default:
		return "py3"
	}
}

// Specifier is a single parsed operator+version constraint.
type Specifier struct {
	// Op is the comparison operator (==, ~=, >=, <=, >, <).
	Op string
	// Version is the version to compare against.
	Version *Version
	// Original is the original specifier string.
	Original string
}

// Version is a parsed interpreter version. Wildcard components ("3.*") are
// recorded as zero; a trailing prerelease label is accepted and ignored.
type Version struct {
	Major    int
	Minor    int
	Patch    int
	Original string
}

// versionRegex matches interpreter version strings, including wildcard
// minor/patch components.
var versionRegex = regexp.MustCompile(`^v?(\d+)(?:\.(\d+|\*))?(?:\.(\d+|\*))?(?:[-.]?([0-9A-Za-z.+!-]+))?$`)

// specifierRegex matches a single operator+version pair.
var specifierRegex = regexp.MustCompile(`^(==|~=|>=|<=|>|<)\s*(.+)$`)

// legacyRegex matches the deprecated dot-joined runtime token spelling
// ("py3", "py2.py3").
var legacyRegex = regexp.MustCompile(`^py[23](?:\.py[23])*$`)

// ParseVersion parses a version string into a Version.
func ParseVersion(s string) (*Version, error) {
	matches := versionRegex.FindStringSubmatch(s)
	if matches == nil {
		return nil, fmt.Errorf("invalid version format: %s", s)
	}

	v := &Version{Original: s}

	var err error
	v.Major, err = strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid major version: %w", err)
	}

	if matches[2] != "" && matches[2] != "*" {
		v.Minor, err = strconv.Atoi(matches[2])
		if err != nil {
			return nil, fmt.Errorf("invalid minor version: %w", err)
		}
	}

	if matches[3] != "" && matches[3] != "*" {
		v.Patch, err = strconv.Atoi(matches[3])
		if err != nil {
			return nil, fmt.Errorf("invalid patch version: %w", err)
		}
	}

	return v, nil
}

// String returns the version as a string.
func (v *Version) String() string {
	return v.Original
}

// IsFloor reports whether the version is exactly the lowest value of its
// major generation (X.0.0 with no wildcards).
func (v *Version) IsFloor() bool {
	return v.Minor == 0 && v.Patch == 0 && !strings.Contains(v.Original, "*")
}

// ParseSpecifier parses one operator+version pair.
func ParseSpecifier(s string) (*Specifier, error) {
	s = strings.TrimSpace(s)

	matches := specifierRegex.FindStringSubmatch(s)
	if matches == nil {
		return nil, fmt.Errorf("invalid specifier format: %s", s)
	}

	version, err := ParseVersion(strings.TrimSpace(matches[2]))
	if err != nil {
		return nil, fmt.Errorf("invalid version in specifier: %w", err)
	}

	return &Specifier{
		Op:       matches[1],
		Version:  version,
		Original: s,
	}, nil
}

// ParseSet parses a comma-separated constraint string into its ordered
// specifier pairs.
func ParseSet(constraint string) ([]*Specifier, error) {
	var set []*Specifier
	for _, part := range strings.Split(constraint, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		spec, err := ParseSpecifier(part)
		if err != nil {
			return nil, err
		}
		set = append(set, spec)
	}
	return set, nil
}

// state is a tri-state generation flag. Unknown means the constraint has not
// addressed the generation yet; it resolves to denied once every pair has
// been applied.
type state int

const (
	unknown state = iota
	allowed
	denied
)

type resolution struct {
	py2 state
	py3 state
}

// Resolve computes which interpreter generations a constraint string allows.
// An empty constraint allows both generations. The deprecated dot-joined
// token spelling is honored with a warning; a "py2" token takes precedence
// over "py3" when both appear.
func Resolve(constraint string, logger *log.Logger) (Support, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return Support{Py2: true, Py3: true}, nil
	}

	if legacyRegex.MatchString(constraint) {
		logger.Warn("runtime tokens in requires-python are deprecated, use version specifiers",
			"value", constraint)
		if strings.Contains(constraint, "py2") {
			return Support{Py2: true}, nil
		}
		return Support{Py3: true}, nil
	}

	set, err := ParseSet(constraint)
	if err != nil {
		return Support{}, err
	}

	var r resolution
	for _, spec := range set {
		if err := r.apply(spec); err != nil {
			return Support{}, fmt.Errorf("%w: %q", err, constraint)
		}
	}

	support := Support{Py2: r.py2 == allowed, Py3: r.py3 == allowed}
	if !support.Py2 && !support.Py3 {
		return Support{}, fmt.Errorf("%w: %q", ErrNoSupportedPython, constraint)
	}
	return support, nil
}

// apply folds one specifier pair into the resolution. Operator/major
// combinations without a defined rule leave the flags untouched.
func (r *resolution) apply(spec *Specifier) error {
	major := spec.Version.Major

	switch spec.Op {
	case "==", "~=":
		switch {
		case major == 3:
			return r.forcePy3Only(spec)
		case major == 2:
			return r.forcePy2Only(spec)
		default:
			return fmt.Errorf("%w: pinned major version %d", ErrNoSupportedPython, major)
		}

	case ">=":
		if major >= 3 {
			return r.forcePy3Only(spec)
		}
		r.fillBoth()

	case "<=":
		if major >= 3 {
			r.fillBoth()
		} else if major == 2 {
			return r.forcePy2Only(spec)
		}

	case ">":
		if major == 3 {
			return r.forcePy3Only(spec)
		} else if major <= 2 {
			r.fillBoth()
		}

	case "<":
		if major >= 3 {
			return r.forcePy2Only(spec)
		} else if major == 2 {
			if spec.Version.IsFloor() {
				return fmt.Errorf("%w: nothing below %s", ErrNoSupportedPython, spec.Version)
			}
			return r.forcePy2Only(spec)
		}
	}

	return nil
}

func (r *resolution) forcePy2Only(spec *Specifier) error {
	if r.py2 == denied {
		return fmt.Errorf("%w: %q contradicts earlier pairs", ErrNoSupportedPython, spec.Original)
	}
	r.py2 = allowed
	r.py3 = denied
	return nil
}

func (r *resolution) forcePy3Only(spec *Specifier) error {
	if r.py3 == denied {
		return fmt.Errorf("%w: %q contradicts earlier pairs", ErrNoSupportedPython, spec.Original)
	}
	r.py3 = allowed
	r.py2 = denied
	return nil
}

// fillBoth marks still-unaddressed generations as allowed without reviving a
// generation an earlier pair denied.
func (r *resolution) fillBoth() {
	if r.py2 == unknown {
		r.py2 = allowed
	}
	if r.py3 == unknown {
		r.py3 = allowed
	}
}
