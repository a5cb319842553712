// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/mesonwheel/mesonwheel/pkg/backend"

	"github.com/spf13/cobra"
)

var requiresCmd = &cobra.Command{
	Use:   "requires",
	Short: "Print the build requirements, one per line",
	Long: `Print the PEP 508 requirement strings a frontend must install before
building, as declared by the 'requires' metadata field. Reads only
pyproject.toml; meson is not invoked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if settingsErr != nil {
			return wrapExitError(settingsErr)
		}

		logger := newLogger()
		b := backend.New(backendOptions(), logger)
		defer closeQuietly(b, logger)

		requires, err := b.RequiresForBuild(cmd.Context())
		if err != nil {
			return wrapExitError(err)
		}
		for _, req := range requires {
			fmt.Println(req)
		}
		return nil
	},
}
