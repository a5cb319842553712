// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"errors"

	"github.com/mesonwheel/mesonwheel/internal/meson"
	"github.com/mesonwheel/mesonwheel/internal/specifier"
	"github.com/mesonwheel/mesonwheel/pkg/pyproject"
)

// Failure classes, re-exported so hook callers can match errors without
// reaching into the packages that produce them.
var (
	// ErrConfig reports malformed or schema-violating declared metadata,
	// always surfaced before any subprocess runs.
	ErrConfig = pyproject.ErrConfig

	// ErrSubcommand reports that an external subcommand exited nonzero.
	ErrSubcommand = meson.ErrSubcommand

	// ErrNotConfigured reports a hook called out of sequence.
	ErrNotConfigured = meson.ErrNotConfigured

	// ErrNoSupportedPython reports a requires-python constraint that
	// excludes every interpreter generation.
	ErrNoSupportedPython = specifier.ErrNoSupportedPython
)

// SubcommandError carries a failed subcommand's argv, its captured output
// and the build log tail.
type SubcommandError = meson.SubcommandError

// Process exit codes, one per failure class.
const (
	ExitSuccess           = 0
	ExitGeneralError      = 1
	ExitUsageError        = 2
	ExitConfigError       = 10
	ExitSubcommandError   = 11
	ExitNotConfigured     = 12
	ExitNoSupportedPython = 13
)

// ExitCodeForError maps an error to the process exit code the CLI reports.
func ExitCodeForError(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrConfig):
		return ExitConfigError
	case errors.Is(err, ErrSubcommand):
		return ExitSubcommandError
	case errors.Is(err, ErrNotConfigured):
		return ExitNotConfigured
	case errors.Is(err, ErrNoSupportedPython):
		return ExitNoSupportedPython
	default:
		return ExitGeneralError
	}
}
