// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/mesonwheel/mesonwheel/pkg/pyproject"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the pyproject.toml field reference",
	Long: `Render the reference documentation for every field accepted under
[tool.mesonwheel.metadata] in pyproject.toml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		doc := pyproject.RenderFieldReference()

		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			// Fall back to the raw markdown when the terminal
			// profile cannot be detected.
			fmt.Fprint(cmd.OutOrStdout(), doc)
			return nil
		}

		rendered, err := renderer.Render(doc)
		if err != nil {
			fmt.Fprint(cmd.OutOrStdout(), doc)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), rendered)
		return nil
	},
}
