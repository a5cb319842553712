// SPDX-License-Identifier: MPL-2.0

package pyproject

import (
	"fmt"
	"strings"
)

// FieldDoc describes one accepted [tool.mesonwheel.metadata] field for the
// rendered reference.
type FieldDoc struct {
	Name        string
	Required    bool
	Description string
}

// FieldDocs lists every accepted metadata field, in display order.
var FieldDocs = []FieldDoc{
	{
		Name:        "module",
		Description: "Distribution name. Defaults to the meson project name.",
	},
	{
		Name:        "version",
		Description: "Package version. Defaults to the meson project version.",
	},
	{
		Name:        "summary",
		Required:    true,
		Description: "A one-sentence summary about the package.",
	},
	{
		Name:        "description",
		Description: "Longer description text, shown on the package index. Use `readme` to load it from a file instead.",
	},
	{
		Name: "readme",
		Description: "Path, relative to pyproject.toml, of a file holding the long description. " +
			"The filename extension picks the declared content type: `.rst`, `.md` or `.txt`.",
	},
	{
		Name:        "description-file",
		Description: "Deprecated spelling of `readme`.",
	},
	{
		Name: "license",
		Description: "Text indicating the license covering the distribution: " +
			"a license expression or any free text.",
	},
	{
		Name:        "author",
		Description: "Author name.",
	},
	{
		Name:        "author-email",
		Description: "Author email address.",
	},
	{
		Name:        "maintainer",
		Description: "Name of the current maintainer, when different from the author.",
	},
	{
		Name:        "maintainer-email",
		Description: "Maintainer email address.",
	},
	{
		Name:        "home-page",
		Description: "URL of the package's home page.",
	},
	{
		Name:        "classifiers",
		Description: "A list of package index classifiers.",
	},
	{
		Name: "project-urls",
		Description: "A list of `Label, URL` entries, for example " +
			"`\"Source, https://example.com/src\"`.",
	},
	{
		Name: "requires",
		Description: "A list of packages this package needs at runtime. Each entry may carry " +
			"a version specifier, such as `requests >=2.6`, and an environment marker after a semicolon.",
	},
	{
		Name: "requires-python",
		Description: "A version specifier for the Python generations this package supports, " +
			"e.g. `>=3.3,<4`.",
	},
	{
		Name:        "platforms",
		Description: "Platform tag override for the built wheel, such as `any`.",
	},
	{
		Name: "meson-options",
		Description: "A list of default meson setup options. The `MESON_ARGS` environment " +
			"variable extends and overrides them at build time.",
	},
	{
		Name: "meson-python-option-name",
		Description: "Name of the meson build option that selects the python installation " +
			"passed to `python.find_installation()`.",
	},
	{
		Name: "pkg-info-file",
		Description: "Path of a ready-made PKG-INFO file. When set, it replaces every other " +
			"declared field; only the computed name and version headers are kept.",
	},
}

// RenderFieldReference renders the accepted-field listing as markdown, one
// section per field.
func RenderFieldReference() string {
	var b strings.Builder
	b.WriteString("# Metadata fields\n\n")
	b.WriteString("Declared in the `[tool.mesonwheel.metadata]` table of pyproject.toml. ")
	b.WriteString("The standard `[project]` table is accepted as well and wins on collision; ")
	b.WriteString("entry points go in `[tool.mesonwheel.entry-points]`, one list of ")
	b.WriteString("`name = target` lines per group.\n\n")

	for _, f := range FieldDocs {
		fmt.Fprintf(&b, "### `%s`", f.Name)
		if f.Required {
			b.WriteString(" (required)")
		}
		b.WriteString("\n\n")
		b.WriteString(f.Description)
		b.WriteString("\n\n")
	}
	return b.String()
}
