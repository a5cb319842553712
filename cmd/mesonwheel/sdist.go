// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesonwheel/mesonwheel/pkg/backend"

	"github.com/spf13/cobra"
)

var sdistCmd = &cobra.Command{
	Use:   "sdist",
	Short: "Build a source distribution into the output directory",
	Long: `Configure the Meson project, run 'meson dist', and repack the export
into a source distribution with a PKG-INFO manifest. The path of the
built sdist is printed on stdout.

Set SOURCE_DATE_EPOCH to pin archive timestamps for reproducible
builds.`,
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

		name, err := b.BuildSdist(cmd.Context(), outputDir)
		if err != nil {
			return wrapExitError(err)
		}
		fmt.Println(filepath.Join(outputDir, name))
		return nil
	},
}
