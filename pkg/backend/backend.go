// SPDX-License-Identifier: MPL-2.0

// Package backend implements the build-backend hook surface over a meson
// source tree: declaring build requirements, preparing the dist-info
// metadata directory, building a wheel and building an sdist.
//
// A Backend is one build session. The hooks share the session's resolved
// metadata, classification and compatibility tag, so the tag stamped during
// metadata preparation can never differ from the one in the wheel filename.
// Close releases the session's scratch directories.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/shell"

	"github.com/mesonwheel/mesonwheel/internal/archive"
	"github.com/mesonwheel/mesonwheel/internal/classify"
	"github.com/mesonwheel/mesonwheel/internal/meson"
	"github.com/mesonwheel/mesonwheel/internal/tags"
	"github.com/mesonwheel/mesonwheel/pkg/pyproject"
)

// Options configures one backend session.
type Options struct {
	// SourceDir is the project root holding pyproject.toml and meson.build.
	// Empty means the current directory.
	SourceDir string

	// BuildDir adopts an already-configured build directory instead of
	// setting up a scratch one. The adopted directory's configured prefix
	// is used as the install staging area.
	BuildDir string

	// ConfigureArgs, InstallArgs and DistArgs are shell-tokenized and
	// appended to the corresponding meson subcommand. Tokens overriding the
	// install prefix or libdir are rejected; the backend fixes both.
	ConfigureArgs string
	InstallArgs   string
	DistArgs      string
}

// state tracks the session lifecycle.
type state int

const (
	stateUnconfigured state = iota
	stateConfigured
	stateClosed
)

// Backend is one build session. Not safe for concurrent use; the hook
// sequence is strictly sequential.
type Backend struct {
	opts   Options
	logger *log.Logger

	state  state
	runner *meson.Runner

	meta *pyproject.Metadata
	cls  *classify.Classification
	tag  tags.Tag

	installArgs []string
	distArgs    []string

	distInfoName string
	distInfoDir  string

	scratchDirs []string
}

// New returns an unconfigured session. A nil logger discards all output.
func New(opts Options, logger *log.Logger) *Backend {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.SourceDir == "" {
		opts.SourceDir = "."
	}
	return &Backend{opts: opts, logger: logger}
}

// Close removes the session's scratch build and install directories.
// Idempotent; the session is unusable afterwards.
func (b *Backend) Close() error {
	if b.state == stateClosed {
		return nil
	}
	b.state = stateClosed

	var errs []error
	for _, dir := range b.scratchDirs {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RequiresForBuild returns the declared build requirements verbatim. Wheel
// and sdist builds share the same list, and no subprocess is involved.
func (b *Backend) RequiresForBuild(_ context.Context) ([]string, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	meta, err := b.loadMetadata()
	if err != nil {
		return nil, err
	}
	return meta.Requires, nil
}

// PrepareMetadata writes <module>-<version>.dist-info under metadataDir,
// configuring a build directory first when the session has none, and
// returns the dist-info directory name.
func (b *Backend) PrepareMetadata(ctx context.Context, metadataDir string) (string, error) {
	if err := b.ensureOpen(); err != nil {
		return "", err
	}
	if err := b.configure(ctx); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%s.dist-info", b.meta.Module, b.meta.Version)
	dir := filepath.Join(metadataDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dist-info directory: %w", err)
	}

	manifest, err := b.meta.RenderManifest()
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(filepath.Join(dir, "WHEEL"), []byte(renderWheelFile(b.tag)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write WHEEL: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "METADATA"), []byte(manifest), 0o644); err != nil {
		return "", fmt.Errorf("failed to write METADATA: %w", err)
	}
	if entryPoints := b.meta.RenderEntryPoints(); entryPoints != "" {
		if err := os.WriteFile(filepath.Join(dir, "entry_points.txt"), []byte(entryPoints), 0o644); err != nil {
			return "", fmt.Errorf("failed to write entry_points.txt: %w", err)
		}
	}

	b.distInfoName = name
	b.distInfoDir = dir
	return name, nil
}

// BuildWheel runs the full configure-install-classify-pack sequence and
// returns the wheel filename inside wheelDir.
func (b *Backend) BuildWheel(ctx context.Context, wheelDir string) (string, error) {
	if err := b.ensureOpen(); err != nil {
		return "", err
	}

	// Stage the dist-info in scratch space when no earlier hook prepared it.
	if b.distInfoDir == "" {
		scratch, err := b.scratchDir("metadata")
		if err != nil {
			return "", err
		}
		if _, err := b.PrepareMetadata(ctx, scratch); err != nil {
			return "", err
		}
	}

	if err := b.runner.Install(ctx, b.installArgs); err != nil {
		return "", err
	}

	if err := os.MkdirAll(wheelDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := fmt.Sprintf("%s-%s-%s.whl", b.meta.Module, b.meta.Version, b.tag)

	w, err := archive.NewWheel(filepath.Join(wheelDir, filename))
	if err != nil {
		return "", err
	}
	defer w.Abort()

	for _, name := range []string{"WHEEL", "METADATA", "entry_points.txt"} {
		src := filepath.Join(b.distInfoDir, name)
		if _, statErr := os.Stat(src); statErr != nil {
			// entry_points.txt is rendered only when entry points are declared.
			if errors.Is(statErr, fs.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("failed to read prepared dist-info: %w", statErr)
		}
		if err := w.Add(path.Join(b.distInfoName, name), src); err != nil {
			return "", err
		}
	}

	for _, installed := range b.cls.Files() {
		arcPath, ok := b.cls.WheelPath(installed)
		if !ok {
			b.logger.Debug("omitting file with no archive destination", "path", installed)
			continue
		}
		if err := w.Add(arcPath, installed); err != nil {
			return "", err
		}
	}

	if err := w.Close(path.Join(b.distInfoName, "RECORD")); err != nil {
		return "", err
	}
	return filename, nil
}

// BuildSdist exports the source tree through meson dist, injects the
// rendered PKG-INFO at the tree root and repacks it as a gzip-compressed
// PAX tar. Returns the sdist filename inside sdistDir.
func (b *Backend) BuildSdist(ctx context.Context, sdistDir string) (string, error) {
	if err := b.ensureOpen(); err != nil {
		return "", err
	}
	if err := b.configure(ctx); err != nil {
		return "", err
	}

	if err := b.runner.Dist(ctx, b.distArgs); err != nil {
		return "", err
	}

	// meson names the export after its own project, which may differ from
	// the declared module.
	info, err := b.runner.ProjectInfo()
	if err != nil {
		return "", err
	}

	scratch, err := b.scratchDir("sdist")
	if err != nil {
		return "", err
	}
	if err := archive.ExtractTarGz(b.runner.DistPath(info.Name, info.Version), scratch); err != nil {
		return "", err
	}

	exportRoot := fmt.Sprintf("%s-%s", info.Name, info.Version)
	rootName := fmt.Sprintf("%s-%s", b.meta.Module, b.meta.Version)
	if exportRoot != rootName {
		if err := os.Rename(filepath.Join(scratch, exportRoot), filepath.Join(scratch, rootName)); err != nil {
			return "", fmt.Errorf("failed to rename export root: %w", err)
		}
	}

	manifest, err := b.meta.RenderManifest()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(scratch, rootName, "PKG-INFO"), []byte(manifest), 0o644); err != nil {
		return "", fmt.Errorf("failed to write PKG-INFO: %w", err)
	}

	if err := os.MkdirAll(sdistDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	epoch, pinned := archive.SourceDateEpoch()
	if pinned {
		b.logger.Debug("pinning archive timestamps", "epoch", epoch.Unix())
	}

	filename := rootName + ".tar.gz"
	if err := archive.WriteSdist(filepath.Join(sdistDir, filename), scratch, rootName, epoch); err != nil {
		return "", err
	}
	return filename, nil
}

// Tag returns the session's resolved compatibility tag. Valid once a hook
// beyond RequiresForBuild has run.
func (b *Backend) Tag() tags.Tag { return b.tag }

func (b *Backend) ensureOpen() error {
	if b.state == stateClosed {
		return fmt.Errorf("%w: session is closed", ErrNotConfigured)
	}
	return nil
}

// configure binds a build directory and resolves metadata, classification
// and the compatibility tag, exactly once per session. Configuration errors
// surface before meson ever runs.
func (b *Backend) configure(ctx context.Context) error {
	if b.state >= stateConfigured {
		return nil
	}

	meta, err := b.loadMetadata()
	if err != nil {
		return err
	}

	if b.installArgs, err = userArgs(b.opts.InstallArgs, "install-args"); err != nil {
		return err
	}
	if b.distArgs, err = userArgs(b.opts.DistArgs, "dist-args"); err != nil {
		return err
	}
	configureArgs, err := b.configureArgs(meta)
	if err != nil {
		return err
	}

	b.runner = meson.NewRunner(b.opts.SourceDir, b.logger)
	if b.opts.BuildDir != "" {
		if len(configureArgs) > 0 {
			b.logger.Warn("build directory adopted as configured, ignoring setup arguments",
				"args", strings.Join(configureArgs, " "))
		}
		if err := b.runner.Adopt(b.opts.BuildDir); err != nil {
			return err
		}
	} else {
		buildDir, err := b.scratchDir("build")
		if err != nil {
			return err
		}
		installDir, err := b.scratchDir("install")
		if err != nil {
			return err
		}
		if err := b.runner.Configure(ctx, buildDir, installDir, configureArgs); err != nil {
			return err
		}
	}

	info, err := b.runner.ProjectInfo()
	if err != nil {
		return err
	}
	meta.SetBuildInfo(info.Version, info.Name)
	rebaseMetadataPaths(meta, b.opts.SourceDir)

	options, err := b.runner.BuildOptions()
	if err != nil {
		return err
	}

	cls, tag, err := b.resolveClassification(ctx, meta, options)
	if err != nil {
		return err
	}

	b.meta = meta
	b.cls = cls
	b.tag = tag
	b.state = stateConfigured
	return nil
}

// resolveClassification sorts the install manifest and computes the tag.
// The structured install plan is preferred; older build tools only emit the
// flat manifest, which needs the interpreter's extension suffix for purity
// detection.
func (b *Backend) resolveClassification(ctx context.Context, meta *pyproject.Metadata, options meson.BuildOptions) (*classify.Classification, tags.Tag, error) {
	installed, err := b.runner.Installed()
	if err != nil {
		return nil, tags.Tag{}, err
	}

	if b.runner.HasDocument(meson.DocInstallPlan) {
		plan, err := b.runner.InstallPlan()
		if err != nil {
			return nil, tags.Tag{}, err
		}
		targets, err := b.runner.Targets()
		if err != nil {
			return nil, tags.Tag{}, err
		}
		cls, err := classify.FromPlan(plan, installed, targets, meta.Module, b.logger)
		if err != nil {
			return nil, tags.Tag{}, err
		}
		tag, err := tags.Resolve(ctx, meta, cls.IsPure, options, b.logger)
		return cls, tag, err
	}

	python := tags.Interpreter(options, meta.MesonPythonOptionName, b.logger)
	suffix := tags.NativeSuffix(ctx, python, b.logger)
	cls := classify.FromInstalled(installed, suffix, meta.Module, b.logger)
	tag, err := tags.ResolveWith(ctx, meta, cls.IsPure, python, b.logger)
	return cls, tag, err
}

func (b *Backend) loadMetadata() (*pyproject.Metadata, error) {
	doc, err := pyproject.Load(filepath.Join(b.opts.SourceDir, pyproject.FileName))
	if err != nil {
		return nil, err
	}
	return doc.Resolve(b.logger)
}

// configureArgs assembles the extra meson setup arguments: declared
// meson-options first, then MESON_ARGS from the environment, then the
// session's configure-args. User-supplied tokens are checked against the
// backend-fixed prefix and libdir.
func (b *Backend) configureArgs(meta *pyproject.Metadata) ([]string, error) {
	args := slices.Clone(meta.MesonOptions)

	if env := os.Getenv("MESON_ARGS"); env != "" {
		fields, err := userArgs(env, "MESON_ARGS")
		if err != nil {
			return nil, err
		}
		b.logger.Info("using MESON_ARGS", "args", strings.Join(fields, " "))
		args = append(args, fields...)
	}

	fields, err := userArgs(b.opts.ConfigureArgs, "configure-args")
	if err != nil {
		return nil, err
	}
	return append(args, fields...), nil
}

// userArgs shell-tokenizes one extra-argument string and rejects tokens
// that would override the install prefix or libdir.
func userArgs(raw, what string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	fields, err := shell.Fields(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot tokenize %s: %v", ErrConfig, what, err)
	}
	for i, arg := range fields {
		// meson also accepts the option name as a separate token: -D prefix=/x.
		if arg == "-D" && i+1 < len(fields) {
			arg += fields[i+1]
		}
		if isReservedArg(arg) {
			return nil, fmt.Errorf("%w: %s: %q overrides a backend-fixed directory", ErrConfig, what, arg)
		}
	}
	return fields, nil
}

func isReservedArg(arg string) bool {
	switch {
	case arg == "--prefix", strings.HasPrefix(arg, "--prefix="),
		arg == "--libdir", strings.HasPrefix(arg, "--libdir="),
		strings.HasPrefix(arg, "-Dprefix="),
		strings.HasPrefix(arg, "-Dlibdir="):
		return true
	}
	return false
}

// rebaseMetadataPaths resolves declared file references against the source
// directory, so the backend may run from anywhere.
func rebaseMetadataPaths(meta *pyproject.Metadata, sourceDir string) {
	rebase := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(sourceDir, *p)
		}
	}
	rebase(&meta.PkgInfoFile)
	rebase(&meta.License.File)
	rebase(&meta.ReadmeFile)
}

func (b *Backend) scratchDir(kind string) (string, error) {
	dir, err := os.MkdirTemp("", "mesonwheel-"+kind+"-*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch %s directory: %w", kind, err)
	}
	b.scratchDirs = append(b.scratchDirs, dir)
	return dir, nil
}

// renderWheelFile renders the WHEEL descriptor carried in the dist-info
// directory.
func renderWheelFile(tag tags.Tag) string {
	return fmt.Sprintf("Wheel-Version: 1.0\nGenerator: mesonwheel\nRoot-Is-Purelib: %t\nTag: %s\n", tag.Pure, tag)
}
