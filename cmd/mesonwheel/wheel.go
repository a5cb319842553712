// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesonwheel/mesonwheel/pkg/backend"

	"github.com/spf13/cobra"
)

var wheelCmd = &cobra.Command{
	Use:   "wheel",
	Short: "Build a wheel into the output directory",
	Long: `Configure the Meson project, install it into a staging prefix, and
pack the installed files into a wheel. The path of the built wheel is
printed on stdout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if settingsErr != nil {
			return wrapExitError(settingsErr)
		}
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return wrapExitError(err)
		}

		logger := newLogger()
		b := backend.New(backendOptions(), logger)
		defer closeQuietly(b, logger)

		name, err := b.BuildWheel(cmd.Context(), outputDir)
		if err != nil {
			return wrapExitError(err)
		}
		fmt.Println(filepath.Join(outputDir, name))
		return nil
	},
}
