// SPDX-License-Identifier: MPL-2.0

// Package pyproject loads the declared package metadata from pyproject.toml,
// validates it against a closed schema, and resolves the two competing
// schema generations into one canonical metadata model.
package pyproject

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/mesonwheel/mesonwheel/internal/cueschema"
)

//go:embed schema.cue
var metadataSchema []byte

// ErrConfig reports malformed or schema-violating declared metadata. It is
// always detected before any build subprocess runs.
var ErrConfig = errors.New("invalid project configuration")

// FileName is the canonical name of the configuration file.
const FileName = "pyproject.toml"

// Document is a parsed pyproject.toml, holding each schema generation as its
// own strict record. Resolve merges them into a Metadata model.
type Document struct {
	// Project is the standard [project] table, nil when absent.
	Project *ProjectTable
	// Legacy is the [tool.mesonwheel.metadata] table, nil when absent.
	Legacy *LegacyTable
	// LegacyEntryPoints is the [tool.mesonwheel.entry-points] table: group
	// name to "name = target" lines.
	LegacyEntryPoints map[string][]string

	source string
}

// ProjectTable mirrors the standard [project] table. Readme and License keep
// their raw polymorphic shape (string or table) until resolution.
type ProjectTable struct {
	Name           string                       `toml:"name"`
	Version        string                       `toml:"version"`
	Description    string                       `toml:"description"`
	Readme         any                          `toml:"readme"`
	License        any                          `toml:"license"`
	Authors        []Person                     `toml:"authors"`
	Maintainers    []Person                     `toml:"maintainers"`
	Keywords       []string                     `toml:"keywords"`
	Classifiers    []string                     `toml:"classifiers"`
	URLs           map[string]string            `toml:"urls"`
	Dependencies   []string                     `toml:"dependencies"`
	RequiresPython string                       `toml:"requires-python"`
	Scripts        map[string]string            `toml:"scripts"`
	GUIScripts     map[string]string            `toml:"gui-scripts"`
	EntryPoints    map[string]map[string]string `toml:"entry-points"`
	Dynamic        []string                     `toml:"dynamic"`
}

// Person is one author or maintainer entry.
type Person struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// LegacyTable mirrors the [tool.mesonwheel.metadata] table.
type LegacyTable struct {
	Author                string   `toml:"author"`
	AuthorEmail           string   `toml:"author-email"`
	Classifiers           []string `toml:"classifiers"`
	Description           string   `toml:"description"`
	DescriptionFile       string   `toml:"description-file"`
	HomePage              string   `toml:"home-page"`
	License               string   `toml:"license"`
	Maintainer            string   `toml:"maintainer"`
	MaintainerEmail       string   `toml:"maintainer-email"`
	MesonOptions          []string `toml:"meson-options"`
	MesonPythonOptionName string   `toml:"meson-python-option-name"`
	Module                string   `toml:"module"`
	PkgInfoFile           string   `toml:"pkg-info-file"`
	Platforms             string   `toml:"platforms"`
	ProjectURLs           []string `toml:"project-urls"`
	Readme                string   `toml:"readme"`
	Requires              []string `toml:"requires"`
	RequiresPython        string   `toml:"requires-python"`
	Summary               string   `toml:"summary"`
	Version               string   `toml:"version"`
}

type document struct {
	Project *ProjectTable `toml:"project"`
	Tool    struct {
		Mesonwheel struct {
			Metadata    *LegacyTable        `toml:"metadata"`
			EntryPoints map[string][]string `toml:"entry-points"`
		} `toml:"mesonwheel"`
	} `toml:"tool"`
}

// Load reads and parses a pyproject.toml from the given path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses pyproject.toml content from bytes. Every declared table is
// validated against its closed schema definition; unknown fields and wrong
// types fail here, before anything else happens.
func Parse(data []byte, source string) (*Document, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfig, source, err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfig, source, err)
	}

	d := &Document{
		Project:           doc.Project,
		Legacy:            doc.Tool.Mesonwheel.Metadata,
		LegacyEntryPoints: doc.Tool.Mesonwheel.EntryPoints,
		source:            source,
	}

	if d.Project == nil && d.Legacy == nil {
		return nil, fmt.Errorf("%w: %s: a [project] or [tool.mesonwheel.metadata] table is required",
			ErrConfig, source)
	}

	if v, ok := lookupTable(raw, "project"); ok {
		if err := cueschema.Validate(metadataSchema, "#Project", v, source); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}
	if v, ok := lookupTable(raw, "tool", "mesonwheel", "metadata"); ok {
		if err := cueschema.Validate(metadataSchema, "#Metadata", v, source); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}
	if v, ok := lookupTable(raw, "tool", "mesonwheel", "entry-points"); ok {
		if err := cueschema.Validate(metadataSchema, "#EntryPoints", v, source); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}

	return d, nil
}

// lookupTable walks nested raw TOML tables by key path.
func lookupTable(raw map[string]any, path ...string) (any, bool) {
	var current any = raw
	for _, key := range path {
		table, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = table[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
