// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesonwheel/mesonwheel/pkg/backend"

	"github.com/spf13/cobra"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Write the dist-info metadata directory without building",
	Long: `Resolve package metadata and the compatibility tag, then write the
.dist-info directory (METADATA, WHEEL, entry_points.txt) into the
output directory. No compilation or installation happens beyond the
Meson configure step.`,
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

		name, err := b.PrepareMetadata(cmd.Context(), outputDir)
		if err != nil {
			return wrapExitError(err)
		}
		fmt.Println(filepath.Join(outputDir, name))
		return nil
	},
}
