// SPDX-License-Identifier: MPL-2.0

// Package tags computes the compatibility tag stamped on a wheel filename.
// Pure builds are tagged from the declared interpreter-version constraint;
// impure builds probe the target interpreter for its implementation, ABI and
// platform.
package tags

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/mesonwheel/mesonwheel/internal/meson"
	"github.com/mesonwheel/mesonwheel/internal/specifier"
	"github.com/mesonwheel/mesonwheel/pkg/pyproject"
)

// fallbackInterpreter is probed when no build option names the target
// interpreter.
const fallbackInterpreter = "python3"

// Tag is a resolved compatibility tag. InterpABI carries the joined
// interpreter and ABI components ("py3-none", "cp311-cp311").
type Tag struct {
	Pure      bool
	InterpABI string
	Platform  string
}

// String returns the dash-joined filename form.
func (t Tag) String() string {
	return t.InterpABI + "-" + t.Platform
}

// Resolve computes the tag for one build. The declared platforms value
// overrides the platform component in both branches; impure builds otherwise
// use the probed platform, pure builds use "any".
func Resolve(ctx context.Context, meta *pyproject.Metadata, pure bool, options meson.BuildOptions, logger *log.Logger) (Tag, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	var python string
	if !pure {
		python = Interpreter(options, meta.MesonPythonOptionName, logger)
	}
	return ResolveWith(ctx, meta, pure, python, logger)
}

// ResolveWith computes the tag like Resolve, reusing an already-resolved
// interpreter for the impure probe.
func ResolveWith(ctx context.Context, meta *pyproject.Metadata, pure bool, python string, logger *log.Logger) (Tag, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	if pure {
		support, err := specifier.Resolve(meta.RequiresPython, logger)
		if err != nil {
			return Tag{}, err
		}
		platform := meta.Platforms
		if platform == "" {
			platform = "any"
		}
		return Tag{Pure: true, InterpABI: support.Tag() + "-none", Platform: platform}, nil
	}

	interpABI, probed, err := Probe(ctx, python)
	if err != nil {
		return Tag{}, err
	}
	platform := meta.Platforms
	if platform == "" {
		platform = probed
	}
	return Tag{InterpABI: interpABI, Platform: platform}, nil
}

// Interpreter resolves the target interpreter executable: the value of the
// configured build option named by optionName, or python3 with a logged
// notice when the metadata declares no option name or the option is absent.
func Interpreter(options meson.BuildOptions, optionName string, logger *log.Logger) string {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if optionName == "" {
		logger.Warn("meson-python-option-name not declared, assuming python3")
		return fallbackInterpreter
	}
	python, ok := options.String(optionName)
	if !ok || python == "" {
		logger.Warn("interpreter build option not found, assuming python3", "option", optionName)
		return fallbackInterpreter
	}
	return python
}

// probeScript prints the interpreter's implementation+ABI pair and its
// platform string, one per line.
const probeScript = `
import platform
import sys
import sysconfig

impls = {"CPython": "cp", "PyPy": "pp", "Jython": "jy", "IronPython": "ip"}
name = platform.python_implementation()
if name not in impls:
    sys.exit("unknown python implementation: " + name)

ver = sysconfig.get_config_var("py_version_nodot") or "%d%d" % sys.version_info[:2]
soabi = sysconfig.get_config_var("SOABI") or ""
if soabi.startswith("cpython-"):
    abi = "cp" + soabi.split("-")[1]
elif soabi:
    abi = soabi.replace(".", "_").replace("-", "_")
else:
    abi = "none"

print("%s%s-%s" % (impls[name], ver, abi))
print(sysconfig.get_platform())
`

// Probe runs the interpreter once and reads its implementation+ABI pair and
// platform tag. The platform is normalized: dashes and dots become
// underscores. A failing probe is a subcommand failure; impure wheels cannot
// be tagged blind.
func Probe(ctx context.Context, python string) (interpABI, platform string, err error) {
	cmd := exec.CommandContext(ctx, python, "-c", probeScript)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return "", "", &meson.SubcommandError{
			Args:   []string{python, "-c", "<abi probe>"},
			Output: output.String(),
			Err:    err,
		}
	}

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 2 {
		return "", "", fmt.Errorf("interpreter probe printed %d lines, want 2: %q", len(lines), output.String())
	}
	return strings.TrimSpace(lines[0]), NormalizePlatform(strings.TrimSpace(lines[1])), nil
}

// NormalizePlatform rewrites a sysconfig platform string to tag form:
// "linux-x86_64" becomes "linux_x86_64".
func NormalizePlatform(platform string) string {
	return strings.NewReplacer("-", "_", ".", "_").Replace(platform)
}

// suffixScript prints the extension-module filename suffix, empty when the
// interpreter defines none.
const suffixScript = `import sysconfig; print(sysconfig.get_config_var("EXT_SUFFIX") or sysconfig.get_config_var("SO") or "")`

// NativeSuffix probes the interpreter for its extension-module filename
// suffix, used by the legacy flat-manifest classification. A failed probe
// falls back to the platform default with a warning; classification degrades
// rather than aborting.
func NativeSuffix(ctx context.Context, python string, logger *log.Logger) string {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	out, err := exec.CommandContext(ctx, python, "-c", suffixScript).Output()
	suffix := strings.TrimSpace(string(out))
	if err != nil || suffix == "" {
		suffix = defaultNativeSuffix()
		logger.Warn("extension suffix probe failed, purity detection may be off",
			"interpreter", python, "assuming", suffix)
	}
	return suffix
}

func defaultNativeSuffix() string {
	if runtime.GOOS == "windows" {
		return "pyd"
	}
	return "so"
}
