// SPDX-License-Identifier: MPL-2.0

// Package classify sorts the files a build installs into wheel categories:
// interpreted sources, platform-specific extension modules, bundled shared
// libraries and typelibs. Everything else stays out of the archive.
package classify

import (
	"fmt"
	"io"
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/mesonwheel/mesonwheel/internal/meson"
)

// Destination template roots meson uses in its structured install plan.
const (
	purelibRoot   = "{py_purelib}"
	platlibRoot   = "{py_platlib}"
	sharedlibRoot = "{libdir_shared}"
)

// typelibExt marks GObject-introspection typelib files.
const typelibExt = ".typelib"

// kind is the wheel category of one installed file.
type kind int

const (
	kindInterpreted kind = iota
	kindPlatform
	kindSharedLibrary
	kindTypelib
)

// Classification is the result of sorting an install manifest. The slices
// hold installed absolute paths; Files returns them in the deterministic
// order the archive packer copies them.
type Classification struct {
	// Module is the distribution module name owning .libs/.data subtrees.
	Module string
	// IsPure reports that no platform-specific compiled module is packaged.
	IsPure bool

	InterpretedSources []string
	PlatformFiles      []string
	SharedLibraries    []string
	Typelibs           []string

	kinds map[string]kind
	order []string
}

// Files returns every packaged installed path in emission order.
func (c *Classification) Files() []string {
	return slices.Clone(c.order)
}

// WheelPath maps a classified installed path to its position inside the
// binary archive, always using forward slashes. ok is false for paths the
// classifier excluded or that have no archive position; such files are
// omitted from the archive, never errored.
func (c *Classification) WheelPath(installed string) (string, bool) {
	switch k, found := c.kinds[installed]; {
	case !found:
		return "", false
	case k == kindInterpreted || k == kindPlatform:
		return sitePackagesRel(installed)
	case k == kindSharedLibrary:
		return path.Join(c.Module+".libs", filepath.Base(installed)), true
	case k == kindTypelib:
		return path.Join(c.Module+".data", "platlib", "girepository-1.0", filepath.Base(installed)), true
	}
	return "", false
}

func (c *Classification) add(installed string, k kind, logger *log.Logger) {
	if _, taken := c.kinds[installed]; taken {
		logger.Debug("already classified, keeping first category", "path", installed)
		return
	}
	c.kinds[installed] = k
	c.order = append(c.order, installed)

	switch k {
	case kindInterpreted:
		c.InterpretedSources = append(c.InterpretedSources, installed)
	case kindPlatform:
		c.PlatformFiles = append(c.PlatformFiles, installed)
	case kindSharedLibrary:
		c.SharedLibraries = append(c.SharedLibraries, installed)
	case kindTypelib:
		c.Typelibs = append(c.Typelibs, installed)
	}
}

func newClassification(module string) *Classification {
	return &Classification{
		Module: module,
		IsPure: true,
		kinds:  map[string]kind{},
	}
}

// FromPlan classifies the structured install plan. Every referenced build
// path must resolve through the flat installed manifest; categories and
// paths are visited in sorted order so emission order is deterministic.
func FromPlan(plan meson.InstallPlan, installed meson.Installed, targets meson.Targets, module string, logger *log.Logger) (*Classification, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	c := newClassification(module)

	for _, category := range slices.Sorted(maps.Keys(plan)) {
		entries := plan[category]
		for _, buildPath := range slices.Sorted(maps.Keys(entries)) {
			installedPath, found := installed[buildPath]
			if !found {
				return nil, fmt.Errorf("install plan references %q with no installed destination", buildPath)
			}

			dest := entries[buildPath].Destination
			switch root, _, _ := strings.Cut(dest, "/"); root {
			case purelibRoot:
				// Only the python category installs interpreter-neutral
				// sources into purelib; anything else placed there is a
				// compiled artifact.
				if category != "python" {
					c.IsPure = false
				}
				c.add(installedPath, kindInterpreted, logger)

			case platlibRoot:
				c.IsPure = false
				c.add(installedPath, kindPlatform, logger)

			case sharedlibRoot:
				for _, lib := range targetLibraries(targets, buildPath, installedPath) {
					c.add(lib, kindSharedLibrary, logger)
				}

			default:
				if filepath.Ext(installedPath) == typelibExt {
					c.add(installedPath, kindTypelib, logger)
					continue
				}
				logger.Debug("not packaged", "path", installedPath, "destination", dest)
			}
		}
	}

	return c, nil
}

// targetLibraries returns every installed file of the build target that
// produced buildPath. A library target may emit more than one file
// (versioned aliases); all of them ship. Falls back to the single resolved
// path when no target claims the output.
func targetLibraries(targets meson.Targets, buildPath, installedPath string) []string {
	for _, t := range targets {
		if !slices.Contains(t.Filenames, buildPath) {
			continue
		}
		var libs []string
		for _, f := range t.InstallFilenames {
			if f != "" {
				libs = append(libs, f)
			}
		}
		if len(libs) > 0 {
			return libs
		}
	}
	return []string{installedPath}
}

// FromInstalled classifies the legacy flat manifest, used when the build
// tool emits no structured plan. nativeSuffix is the probed extension-module
// suffix; only its terminal component is compared (".cpython-311-x86_64-
// linux-gnu.so" and "so" are equivalent spellings).
func FromInstalled(installed meson.Installed, nativeSuffix, module string, logger *log.Logger) *Classification {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	c := newClassification(module)
	suffix := terminalSuffix(nativeSuffix)
	if suffix == "" {
		// Bare spelling with no dot, such as the "so" fallback.
		suffix = nativeSuffix
	}

	for _, buildPath := range slices.Sorted(maps.Keys(installed)) {
		installedPath := installed[buildPath]

		switch {
		case underSitePackages(installedPath):
			if suffix != "" && terminalSuffix(installedPath) == suffix {
				c.IsPure = false
				c.add(installedPath, kindPlatform, logger)
			} else {
				c.add(installedPath, kindInterpreted, logger)
			}

		case inSuffixChain(installedPath, suffix):
			c.add(installedPath, kindSharedLibrary, logger)

		case filepath.Ext(installedPath) == typelibExt:
			c.add(installedPath, kindTypelib, logger)

		default:
			logger.Debug("not packaged", "path", installedPath)
		}
	}

	return c
}

// terminalSuffix returns the last dot-separated component of a path's
// basename: "libfoo.so.1" yields "1", ".cpython-311.so" yields "so".
func terminalSuffix(p string) string {
	base := filepath.Base(p)
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		return base[i+1:]
	}
	return ""
}

// inSuffixChain reports whether any dot-separated component of the
// basename, after the stem, equals suffix. Catches versioned shared
// libraries such as "libfoo.so.1.2.3".
func inSuffixChain(p, suffix string) bool {
	parts := strings.Split(filepath.Base(p), ".")
	return len(parts) > 1 && slices.Contains(parts[1:], suffix)
}

// underSitePackages reports whether the path has a directory segment named
// site-packages above it.
func underSitePackages(p string) bool {
	_, ok := sitePackagesRel(p)
	return ok
}

// sitePackagesRel returns the path relative to its nearest ancestor
// directory named site-packages, in forward-slash form.
func sitePackagesRel(p string) (string, bool) {
	segments := strings.Split(filepath.ToSlash(p), "/")
	for i := len(segments) - 2; i >= 0; i-- {
		if segments[i] == "site-packages" {
			return path.Join(segments[i+1:]...), true
		}
	}
	return "", false
}
