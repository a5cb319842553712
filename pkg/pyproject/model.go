// SPDX-License-Identifier: MPL-2.0

package pyproject

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
)

// License is a structured license value: at most one of inline text or a
// file reference.
type License struct {
	Text string
	File string
}

// IsZero reports whether no license was declared.
func (l License) IsZero() bool {
	return l.Text == "" && l.File == ""
}

// Metadata is the canonical model resolved from a Document. It is built once
// per invocation, enriched in place when build introspection becomes
// available, and read-only afterwards.
type Metadata struct {
	Module  string
	Version string
	Summary string

	Author          string
	AuthorEmail     string
	Maintainer      string
	MaintainerEmail string
	HomePage        string

	License           License
	ReadmeFile        string
	ReadmeText        string
	ReadmeContentType string

	Keywords       []string
	Classifiers    []string
	ProjectURLs    []string
	Requires       []string
	RequiresPython string
	Platforms      string

	MesonOptions          []string
	MesonPythonOptionName string
	PkgInfoFile           string

	// EntryPoints maps a group name to its "name = target" lines.
	EntryPoints map[string][]string

	// requiredField names the summary field of the generation the user
	// declared, for error messages.
	requiredField string
}

// Resolve merges the document's schema generations into the canonical model.
// The project table takes precedence on collision; the deprecated
// description-file field is rewritten to readme (with a warning) when no
// readme was declared by either generation.
func (d *Document) Resolve(logger *log.Logger) (*Metadata, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	m := &Metadata{requiredField: "summary"}
	if d.Legacy != nil {
		m = d.Legacy.normalize()
	}

	if d.Project != nil {
		project, err := d.Project.normalize(d.source)
		if err != nil {
			return nil, err
		}
		m.overlay(project)
		m.requiredField = "description"
	}

	for group, lines := range d.LegacyEntryPoints {
		if _, taken := m.EntryPoints[group]; taken {
			continue
		}
		if m.EntryPoints == nil {
			m.EntryPoints = map[string][]string{}
		}
		m.EntryPoints[group] = slices.Clone(lines)
	}

	m.migrateDeprecated(d, logger)

	if m.Summary == "" {
		return nil, fmt.Errorf("%w: %s: required field %q is missing",
			ErrConfig, d.source, m.requiredField)
	}

	return m, nil
}

// migrateDeprecated rewrites deprecated fields to their canonical
// replacement, only when the replacement is unset, warning once per rewrite.
func (m *Metadata) migrateDeprecated(d *Document, logger *log.Logger) {
	if d.Legacy == nil || d.Legacy.DescriptionFile == "" {
		return
	}
	if m.ReadmeFile != "" || m.ReadmeText != "" {
		return
	}
	logger.Warn(`field "description-file" is deprecated, use "readme"`)
	m.ReadmeFile = d.Legacy.DescriptionFile
}

// SetBuildInfo injects the version and module name computed by build
// introspection, keeping any value the user declared.
func (m *Metadata) SetBuildInfo(version, module string) {
	if m.Version == "" {
		m.Version = version
	}
	if m.Module == "" {
		m.Module = module
	}
}

func (t *LegacyTable) normalize() *Metadata {
	m := &Metadata{
		Module:  t.Module,
		Version: t.Version,
		Summary: t.Summary,

		Author:          t.Author,
		AuthorEmail:     t.AuthorEmail,
		Maintainer:      t.Maintainer,
		MaintainerEmail: t.MaintainerEmail,
		HomePage:        t.HomePage,

		License:    License{Text: t.License},
		ReadmeFile: t.Readme,
		ReadmeText: t.Description,

		Classifiers:    slices.Clone(t.Classifiers),
		ProjectURLs:    slices.Clone(t.ProjectURLs),
		Requires:       slices.Clone(t.Requires),
		RequiresPython: t.RequiresPython,
		Platforms:      t.Platforms,

		MesonOptions:          slices.Clone(t.MesonOptions),
		MesonPythonOptionName: t.MesonPythonOptionName,
		PkgInfoFile:           t.PkgInfoFile,

		requiredField: "summary",
	}
	return m
}

func (t *ProjectTable) normalize(source string) (*Metadata, error) {
	m := &Metadata{
		Module:  t.Name,
		Version: t.Version,
		Summary: t.Description,

		Keywords:       slices.Clone(t.Keywords),
		Classifiers:    slices.Clone(t.Classifiers),
		Requires:       slices.Clone(t.Dependencies),
		RequiresPython: t.RequiresPython,

		requiredField: "description",
	}

	m.Author, m.AuthorEmail = joinPersons(t.Authors)
	m.Maintainer, m.MaintainerEmail = joinPersons(t.Maintainers)

	for _, label := range slices.Sorted(maps.Keys(t.URLs)) {
		m.ProjectURLs = append(m.ProjectURLs, fmt.Sprintf("%s, %s", label, t.URLs[label]))
	}

	if err := m.setReadme(t.Readme, source); err != nil {
		return nil, err
	}
	if err := m.setLicense(t.License, source); err != nil {
		return nil, err
	}

	m.EntryPoints = entryPointGroups(t)

	return m, nil
}

func (m *Metadata) setReadme(raw any, source string) error {
	switch v := raw.(type) {
	case nil:
	case string:
		m.ReadmeFile = v
	case map[string]any:
		if file, ok := v["file"].(string); ok {
			m.ReadmeFile = file
		}
		if text, ok := v["text"].(string); ok {
			m.ReadmeText = text
		}
		if ct, ok := v["content-type"].(string); ok {
			m.ReadmeContentType = ct
		}
	default:
		return fmt.Errorf("%w: %s: readme must be a string or a table", ErrConfig, source)
	}
	return nil
}

func (m *Metadata) setLicense(raw any, source string) error {
	switch v := raw.(type) {
	case nil:
	case string:
		m.License = License{Text: v}
	case map[string]any:
		text, _ := v["text"].(string)
		file, _ := v["file"].(string)
		if text != "" && file != "" {
			return fmt.Errorf("%w: %s: license declares both inline text and a file reference",
				ErrConfig, source)
		}
		m.License = License{Text: text, File: file}
	default:
		return fmt.Errorf("%w: %s: license must be a string or a table", ErrConfig, source)
	}
	return nil
}

// joinPersons flattens author/maintainer entries onto the two classic
// metadata fields: names joined on the name field, "Name <email>" forms on
// the email field.
func joinPersons(persons []Person) (names, emails string) {
	var nameParts, emailParts []string
	for _, p := range persons {
		switch {
		case p.Email == "":
			if p.Name != "" {
				nameParts = append(nameParts, p.Name)
			}
		case p.Name == "":
			emailParts = append(emailParts, p.Email)
		default:
			emailParts = append(emailParts, fmt.Sprintf("%s <%s>", p.Name, p.Email))
		}
	}
	return strings.Join(nameParts, ", "), strings.Join(emailParts, ", ")
}

// entryPointGroups flattens the project table's scripts, gui-scripts and
// explicit entry-point groups onto "name = target" lines.
func entryPointGroups(t *ProjectTable) map[string][]string {
	groups := map[string][]string{}

	addGroup := func(group string, entries map[string]string) {
		if len(entries) == 0 {
			return
		}
		for _, name := range slices.Sorted(maps.Keys(entries)) {
			groups[group] = append(groups[group], fmt.Sprintf("%s = %s", name, entries[name]))
		}
	}

	addGroup("console_scripts", t.Scripts)
	addGroup("gui_scripts", t.GUIScripts)
	for group, entries := range t.EntryPoints {
		addGroup(group, entries)
	}

	if len(groups) == 0 {
		return nil
	}
	return groups
}

// overlay copies every set field of the newer generation over the receiver.
func (m *Metadata) overlay(newer *Metadata) {
	overlayString(&m.Module, newer.Module)
	overlayString(&m.Version, newer.Version)
	overlayString(&m.Summary, newer.Summary)
	overlayString(&m.Author, newer.Author)
	overlayString(&m.AuthorEmail, newer.AuthorEmail)
	overlayString(&m.Maintainer, newer.Maintainer)
	overlayString(&m.MaintainerEmail, newer.MaintainerEmail)
	overlayString(&m.HomePage, newer.HomePage)
	overlayString(&m.ReadmeFile, newer.ReadmeFile)
	overlayString(&m.ReadmeText, newer.ReadmeText)
	overlayString(&m.ReadmeContentType, newer.ReadmeContentType)
	overlayString(&m.RequiresPython, newer.RequiresPython)
	overlayString(&m.Platforms, newer.Platforms)

	if !newer.License.IsZero() {
		m.License = newer.License
	}
	if len(newer.Keywords) > 0 {
		m.Keywords = newer.Keywords
	}
	if len(newer.Classifiers) > 0 {
		m.Classifiers = newer.Classifiers
	}
	if len(newer.ProjectURLs) > 0 {
		m.ProjectURLs = newer.ProjectURLs
	}
	if len(newer.Requires) > 0 {
		m.Requires = newer.Requires
	}

	for group, lines := range newer.EntryPoints {
		if m.EntryPoints == nil {
			m.EntryPoints = map[string][]string{}
		}
		m.EntryPoints[group] = lines
	}
}

func overlayString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
