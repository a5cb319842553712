// SPDX-License-Identifier: MPL-2.0

package meson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// infoDir is the directory meson writes its introspection documents into,
// relative to the build directory.
const infoDir = "meson-info"

// Introspection document kinds, each naming one file under meson-info.
const (
	DocProjectInfo  = "projectinfo"
	DocBuildOptions = "buildoptions"
	DocInstalled    = "installed"
	DocInstallPlan  = "install_plan"
	DocTargets      = "targets"
)

// ProjectInfo is the intro-projectinfo.json document.
type ProjectInfo struct {
	Name    string `json:"descriptive_name"`
	Version string `json:"version"`
}

// BuildOption is one entry of the intro-buildoptions.json document. Value
// holds whatever JSON type the option carries.
type BuildOption struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// BuildOptions indexes the configured options by name.
type BuildOptions map[string]BuildOption

// String returns the option's value when it is a string, with ok reporting
// whether the option exists and has string type.
func (o BuildOptions) String(name string) (string, bool) {
	opt, found := o[name]
	if !found {
		return "", false
	}
	s, isStr := opt.Value.(string)
	return s, isStr
}

// Installed is the intro-installed.json document: build path to absolute
// installed path.
type Installed map[string]string

// PlanEntry is one file of the intro-install_plan.json document. Destination
// is a template path whose first segment names the install bucket, such as
// {py_purelib} or {libdir_shared}.
type PlanEntry struct {
	Destination string `json:"destination"`
	Tag         string `json:"tag"`
}

// InstallPlan is the intro-install_plan.json document: category name to
// build path to plan entry.
type InstallPlan map[string]map[string]PlanEntry

// Target is one entry of the intro-targets.json document, trimmed to the
// fields the classifier consumes.
type Target struct {
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	Installed        bool     `json:"installed"`
	Filenames        []string `json:"filename"`
	InstallFilenames []string `json:"install_filename"`
}

// Targets is the intro-targets.json document.
type Targets []Target

// HasDocument reports whether the named introspection document exists in the
// configured build directory.
func (r *Runner) HasDocument(kind string) bool {
	if r.buildDir == "" {
		return false
	}
	_, err := os.Stat(r.documentPath(kind))
	return err == nil
}

// ProjectInfo loads the project name and version.
func (r *Runner) ProjectInfo() (ProjectInfo, error) {
	var info ProjectInfo
	err := r.loadDocument(DocProjectInfo, &info)
	return info, err
}

// BuildOptions loads the configured option set.
func (r *Runner) BuildOptions() (BuildOptions, error) {
	var raw []BuildOption
	if err := r.loadDocument(DocBuildOptions, &raw); err != nil {
		return nil, err
	}
	opts := make(BuildOptions, len(raw))
	for _, opt := range raw {
		opts[opt.Name] = opt
	}
	return opts, nil
}

// Installed loads the flat build-path to installed-path map.
func (r *Runner) Installed() (Installed, error) {
	var installed Installed
	err := r.loadDocument(DocInstalled, &installed)
	return installed, err
}

// InstallPlan loads the structured install plan. Older meson releases do not
// emit it; call HasDocument first.
func (r *Runner) InstallPlan() (InstallPlan, error) {
	var plan InstallPlan
	err := r.loadDocument(DocInstallPlan, &plan)
	return plan, err
}

// Targets loads the build target list.
func (r *Runner) Targets() (Targets, error) {
	var targets Targets
	err := r.loadDocument(DocTargets, &targets)
	return targets, err
}

func (r *Runner) documentPath(kind string) string {
	return filepath.Join(r.buildDir, infoDir, "intro-"+kind+".json")
}

func (r *Runner) loadDocument(kind string, out any) error {
	if r.buildDir == "" {
		return fmt.Errorf("%w: introspection requested before setup", ErrNotConfigured)
	}
	data, err := os.ReadFile(r.documentPath(kind))
	if errors.Is(err, fs.ErrNotExist) {
		// An adopted directory may predate the document, or be half torn down.
		return fmt.Errorf("%w: introspection document %q missing", ErrNotConfigured, kind)
	}
	if err != nil {
		return fmt.Errorf("reading introspection document %q: %w", kind, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding introspection document %q: %w", kind, err)
	}
	return nil
}
