// SPDX-License-Identifier: MPL-2.0

package pyproject

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// readmeContentTypes maps a readme file extension to the declared content
// type of the rendered description.
var readmeContentTypes = map[string]string{
	".rst": "text/x-rst",
	".md":  "text/markdown",
	".txt": "text/plain",
	"":     "text/plain",
}

// RenderManifest renders the canonical textual manifest used both as the
// wheel's METADATA file and the sdist's PKG-INFO file. It fails only when a
// referenced external file cannot be read.
func (m *Metadata) RenderManifest() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Metadata-Version: 2.1\n")
	fmt.Fprintf(&b, "Name: %s\n", m.Module)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)

	// A pre-built manifest replaces every declared field wholesale, keeping
	// only the computed header lines.
	if m.PkgInfoFile != "" {
		data, err := os.ReadFile(m.PkgInfoFile)
		if err != nil {
			return "", fmt.Errorf("failed to read pkg-info-file: %w", err)
		}
		for _, line := range strings.SplitAfter(string(data), "\n") {
			if strings.HasPrefix(line, "Metadata-Version:") || strings.HasPrefix(line, "Version:") {
				continue
			}
			b.WriteString(line)
		}
		return b.String(), nil
	}

	for _, field := range []struct {
		key   string
		value string
	}{
		{"Summary", m.Summary},
		{"Home-page", m.HomePage},
		{"Author", m.Author},
		{"Author-email", m.AuthorEmail},
		{"Maintainer", m.Maintainer},
		{"Maintainer-email", m.MaintainerEmail},
	} {
		if field.value != "" {
			fmt.Fprintf(&b, "%s: %s\n", field.key, field.value)
		}
	}

	for _, req := range m.Requires {
		fmt.Fprintf(&b, "Requires-Dist: %s\n", req)
	}
	for _, classifier := range m.Classifiers {
		fmt.Fprintf(&b, "Classifier: %s\n", classifier)
	}
	for _, url := range m.ProjectURLs {
		fmt.Fprintf(&b, "Project-URL: %s\n", url)
	}

	if err := m.renderLicense(&b); err != nil {
		return "", err
	}
	if err := m.renderDescription(&b); err != nil {
		return "", err
	}

	return b.String(), nil
}

// renderLicense writes the license block: a License: header followed by the
// literal text, every line prefixed with seven spaces and a pipe.
func (m *Metadata) renderLicense(b *strings.Builder) error {
	text := m.License.Text
	if m.License.File != "" {
		data, err := os.ReadFile(m.License.File)
		if err != nil {
			return fmt.Errorf("failed to read license file: %w", err)
		}
		text = string(data)
	}
	if text == "" {
		return nil
	}

	b.WriteString("License:\n")
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(b, "       |%s\n", line)
	}
	return nil
}

// renderDescription writes the content-type line, a blank separator, and the
// full readme text. A readme file wins over inline text.
func (m *Metadata) renderDescription(b *strings.Builder) error {
	text := m.ReadmeText
	contentType := "text/plain"

	if m.ReadmeFile != "" {
		data, err := os.ReadFile(m.ReadmeFile)
		if err != nil {
			return fmt.Errorf("failed to read readme file: %w", err)
		}
		text = string(data)
		ext := strings.ToLower(filepath.Ext(m.ReadmeFile))
		if ct, ok := readmeContentTypes[ext]; ok {
			contentType = ct
		}
	}
	if m.ReadmeContentType != "" {
		contentType = m.ReadmeContentType
	}
	if text == "" {
		return nil
	}

	fmt.Fprintf(b, "Description-Content-Type: %s\n", contentType)
	b.WriteString("\n")
	b.WriteString(text)
	return nil
}

// RenderEntryPoints renders the grouped entry-point listing: group headers
// sorted, entries within a group sorted, a blank line after every group.
// Returns the empty string when no entry points are declared.
func (m *Metadata) RenderEntryPoints() string {
	if len(m.EntryPoints) == 0 {
		return ""
	}

	var b strings.Builder
	for _, group := range slices.Sorted(maps.Keys(m.EntryPoints)) {
		fmt.Fprintf(&b, "[%s]\n", group)
		for _, line := range slices.Sorted(slices.Values(m.EntryPoints[group])) {
			fmt.Fprintf(&b, "%s\n", line)
		}
		b.WriteString("\n")
	}
	return b.String()
}
