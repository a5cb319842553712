// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for mesonwheel.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mesonwheel/mesonwheel/internal/config"
	"github.com/mesonwheel/mesonwheel/pkg/backend"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug output on stderr.
	verbose bool
	// cfgFile allows specifying a custom settings file.
	cfgFile string
	// outputDir is where built artifacts are written.
	outputDir string
	// buildDir, when set, adopts an existing meson build directory.
	buildDir string
	// configureArgs, installArgs, distArgs carry extra meson arguments.
	configureArgs string
	installArgs   string
	distArgs      string

	// settingsErr holds a settings-file failure until a command can report it.
	// Cobra's OnInitialize hooks cannot return errors themselves.
	settingsErr error

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "mesonwheel",
		Short: "Build Python wheels and sdists from Meson projects",
		Long: TitleStyle.Render("mesonwheel") + SubtitleStyle.Render(" - Python wheels and sdists from Meson builds") + `

mesonwheel drives a Meson project through configure, install, and dist
to produce standard Python packaging artifacts: wheels, source
distributions, and dist-info metadata directories.

Package metadata is declared in 'pyproject.toml' under the
[tool.mesonwheel.metadata] table; fields already present in [project]
take precedence over it.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Declare [tool.mesonwheel.metadata] in pyproject.toml
  2. Run 'mesonwheel wheel' from the project root
  3. Find the artifacts under dist/

` + SubtitleStyle.Render("Examples:") + `
  mesonwheel wheel            Build a wheel into dist/
  mesonwheel sdist -o out     Build a source distribution into out/
  mesonwheel metadata         Write only the dist-info directory
  mesonwheel requires         Print the build requirements
  mesonwheel schema           Show the pyproject.toml field reference`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "tool settings file (default is ./"+config.FileName+")")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "", `directory for built artifacts (default "`+config.DefaultOutputDir+`")`)
	rootCmd.PersistentFlags().StringVar(&buildDir, "build-dir", "", "adopt an already configured meson build directory")
	rootCmd.PersistentFlags().StringVar(&configureArgs, "configure-args", "", "extra arguments for 'meson setup'")
	rootCmd.PersistentFlags().StringVar(&installArgs, "install-args", "", "extra arguments for 'meson install'")
	rootCmd.PersistentFlags().StringVar(&distArgs, "dist-args", "", "extra arguments for 'meson dist'")

	// Add subcommands
	rootCmd.AddCommand(wheelCmd)
	rootCmd.AddCommand(sdistCmd)
	rootCmd.AddCommand(metadataCmd)
	rootCmd.AddCommand(requiresCmd)
	rootCmd.AddCommand(schemaCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig reads the settings file and environment variables.
// Failures are deferred to the RunE handlers so they surface as exit
// code 10 instead of a warning that a build frontend would swallow.
func initRootConfig() {
	settings, _, err := config.Load(cfgFile)
	if err != nil {
		settingsErr = err
		return
	}

	// Flags win over file and environment settings.
	if outputDir == "" {
		outputDir = settings.OutputDir
	}
	if buildDir == "" {
		buildDir = settings.BuildDir
	}
	if configureArgs == "" {
		configureArgs = settings.ConfigureArgs
	}
	if installArgs == "" {
		installArgs = settings.InstallArgs
	}
	if distArgs == "" {
		distArgs = settings.DistArgs
	}
	if !verbose {
		verbose = settings.Verbose
	}
}

// newLogger builds the stderr logger handed to backend sessions, so
// stdout stays reserved for artifact paths.
func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "mesonwheel"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// backendOptions assembles backend options from the resolved flag values.
// The source directory is always the working directory.
func backendOptions() backend.Options {
	return backend.Options{
		BuildDir:      buildDir,
		ConfigureArgs: configureArgs,
		InstallArgs:   installArgs,
		DistArgs:      distArgs,
	}
}

// wrapExitError converts err into an ExitError carrying the exit code
// matching the error's category.
func wrapExitError(err error) error {
	code := backend.ExitCodeForError(err)
	if errors.Is(err, config.ErrSettings) {
		code = backend.ExitConfigError
	}
	return &ExitError{Code: code, Err: err}
}

// closeQuietly releases a backend session, logging rather than failing
// when scratch cleanup goes wrong after the artifact is already built.
func closeQuietly(b *backend.Backend, logger *log.Logger) {
	if err := b.Close(); err != nil {
		logger.Warn("cleanup failed", "err", err)
	}
}
