// SPDX-License-Identifier: MPL-2.0

// Package meson drives the external meson build tool: it runs the setup,
// install and dist subcommands and loads the introspection documents meson
// emits into the build directory.
package meson

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

var (
	// ErrSubcommand reports that an external subcommand exited nonzero.
	ErrSubcommand = errors.New("subcommand failed")

	// ErrNotConfigured reports that introspection data was requested before
	// any build directory was configured.
	ErrNotConfigured = errors.New("build directory not configured")
)

// SubcommandError carries a failed subcommand's argv, its captured combined
// output and, best effort, the content of meson's own log file.
type SubcommandError struct {
	Args     []string
	Output   string
	BuildLog string
	Err      error
}

// Error returns the failure message with the captured output appended.
func (e *SubcommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", strings.Join(e.Args, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&b, "\n%s", out)
	}
	if e.BuildLog != "" {
		fmt.Fprintf(&b, "\nfull log:\n%s", strings.TrimRight(e.BuildLog, "\n"))
	}
	return b.String()
}

// Unwrap classifies the failure as ErrSubcommand for errors.Is checks.
func (e *SubcommandError) Unwrap() error { return ErrSubcommand }

// Runner invokes meson subcommands against one source tree. Configure (or
// Adopt) binds it to a build directory; every later call targets that same
// directory.
type Runner struct {
	sourceDir string
	buildDir  string
	logger    *log.Logger
}

// NewRunner returns a runner executing meson with sourceDir as its working
// directory.
func NewRunner(sourceDir string, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{sourceDir: sourceDir, logger: logger}
}

// BuildDir returns the bound build directory, empty before Configure/Adopt.
func (r *Runner) BuildDir() string { return r.buildDir }

// Configure runs meson setup with the backend-fixed prefix and libdir. Extra
// arguments are inserted before the trailing libdir pin so they can never
// override it.
func (r *Runner) Configure(ctx context.Context, buildDir, installDir string, extra []string) error {
	args := []string{"setup", buildDir, "--prefix", installDir}
	args = append(args, extra...)
	args = append(args, "-Dlibdir=lib")

	if err := r.run(ctx, buildDir, args); err != nil {
		return err
	}
	r.buildDir = buildDir
	return nil
}

// Adopt binds the runner to an already-configured build directory without
// invoking meson.
func (r *Runner) Adopt(buildDir string) error {
	if _, err := os.Stat(filepath.Join(buildDir, infoDir)); err != nil {
		return fmt.Errorf("%w: %s has no %s directory", ErrNotConfigured, buildDir, infoDir)
	}
	r.buildDir = buildDir
	return nil
}

// Install runs meson install against the configured build directory.
func (r *Runner) Install(ctx context.Context, extra []string) error {
	if r.buildDir == "" {
		return fmt.Errorf("%w: install requested before setup", ErrNotConfigured)
	}
	args := []string{"install", "-C", r.buildDir}
	args = append(args, extra...)
	return r.run(ctx, r.buildDir, args)
}

// Dist exports the source tree as a gzip-compressed tarball under
// <builddir>/meson-dist.
func (r *Runner) Dist(ctx context.Context, extra []string) error {
	if r.buildDir == "" {
		return fmt.Errorf("%w: dist requested before setup", ErrNotConfigured)
	}
	args := []string{"dist", "-C", r.buildDir, "--formats", "gztar"}
	args = append(args, extra...)
	return r.run(ctx, r.buildDir, args)
}

// DistPath returns the path of the exported source tarball for the given
// module name and version.
func (r *Runner) DistPath(module, version string) string {
	return filepath.Join(r.buildDir, "meson-dist", fmt.Sprintf("%s-%s.tar.gz", module, version))
}

// run executes one meson subcommand, capturing combined output. On failure
// the captured output and the build log under buildDir are wrapped in a
// SubcommandError; nothing is swallowed.
func (r *Runner) run(ctx context.Context, buildDir string, args []string) error {
	r.logger.Debug("running meson", "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, "meson", args...)
	cmd.Dir = r.sourceDir

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return &SubcommandError{
			Args:     append([]string{"meson"}, args...),
			Output:   output.String(),
			BuildLog: readBuildLog(buildDir),
			Err:      err,
		}
	}
	return nil
}

// readBuildLog fetches meson's own log file, best effort.
func readBuildLog(buildDir string) string {
	data, err := os.ReadFile(filepath.Join(buildDir, "meson-logs", "meson-log.txt"))
	if err != nil {
		return ""
	}
	return string(data)
}
