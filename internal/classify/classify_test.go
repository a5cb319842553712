// SPDX-License-Identifier: MPL-2.0

package classify

import (
	"slices"
	"testing"

	"github.com/mesonwheel/mesonwheel/internal/meson"
)

func TestFromPlan(t *testing.T) {
	t.Parallel()

	installed := meson.Installed{
		"src/pkg/__init__.py":  "/prefix/lib/python3/site-packages/pkg/__init__.py",
		"src/pkg/_native.so":   "/prefix/lib/python3/site-packages/pkg/_native.cpython-311-x86_64-linux-gnu.so",
		"src/libhelper.so":     "/prefix/lib/libhelper.so",
		"src/Pkg-1.0.typelib":  "/prefix/lib/girepository-1.0/Pkg-1.0.typelib",
		"doc/manual.txt":       "/prefix/share/doc/pkg/manual.txt",
		"src/pure_only/mod.py": "/prefix/lib/python3/site-packages/pure_only/mod.py",
	}

	plan := meson.InstallPlan{
		"python": {
			"src/pkg/__init__.py":  {Destination: "{py_purelib}/pkg/__init__.py"},
			"src/pure_only/mod.py": {Destination: "{py_purelib}/pure_only/mod.py"},
		},
		"targets": {
			"src/pkg/_native.so": {Destination: "{py_platlib}/pkg/_native.cpython-311-x86_64-linux-gnu.so"},
			"src/libhelper.so":   {Destination: "{libdir_shared}/libhelper.so"},
		},
		"data": {
			"src/Pkg-1.0.typelib": {Destination: "{datadir}/girepository-1.0/Pkg-1.0.typelib"},
			"doc/manual.txt":      {Destination: "{datadir}/doc/pkg/manual.txt"},
		},
	}

	targets := meson.Targets{
		{
			Name:             "helper",
			Type:             "shared library",
			Installed:        true,
			Filenames:        []string{"src/libhelper.so"},
			InstallFilenames: []string{"/prefix/lib/libhelper.so", "/prefix/lib/libhelper.so.1"},
		},
	}

	c, err := FromPlan(plan, installed, targets, "pkg", nil)
	if err != nil {
		t.Fatalf("FromPlan() error = %v", err)
	}

	if c.IsPure {
		t.Error("IsPure = true, want false with a platlib target present")
	}

	wantInterpreted := []string{
		"/prefix/lib/python3/site-packages/pkg/__init__.py",
		"/prefix/lib/python3/site-packages/pure_only/mod.py",
	}
	if !slices.Equal(c.InterpretedSources, wantInterpreted) {
		t.Errorf("InterpretedSources = %v, want %v", c.InterpretedSources, wantInterpreted)
	}

	wantPlatform := []string{"/prefix/lib/python3/site-packages/pkg/_native.cpython-311-x86_64-linux-gnu.so"}
	if !slices.Equal(c.PlatformFiles, wantPlatform) {
		t.Errorf("PlatformFiles = %v, want %v", c.PlatformFiles, wantPlatform)
	}

	wantLibs := []string{"/prefix/lib/libhelper.so", "/prefix/lib/libhelper.so.1"}
	if !slices.Equal(c.SharedLibraries, wantLibs) {
		t.Errorf("SharedLibraries = %v, want %v", c.SharedLibraries, wantLibs)
	}

	wantTypelibs := []string{"/prefix/lib/girepository-1.0/Pkg-1.0.typelib"}
	if !slices.Equal(c.Typelibs, wantTypelibs) {
		t.Errorf("Typelibs = %v, want %v", c.Typelibs, wantTypelibs)
	}

	// The excluded data file must not appear anywhere.
	for _, f := range c.Files() {
		if f == "/prefix/share/doc/pkg/manual.txt" {
			t.Error("excluded data file was packaged")
		}
	}

	// Every packaged file needs an archive position.
	for _, f := range c.Files() {
		if _, ok := c.WheelPath(f); !ok {
			t.Errorf("WheelPath(%q) not mapped", f)
		}
	}
}

func TestFromPlanPure(t *testing.T) {
	t.Parallel()

	installed := meson.Installed{
		"src/pkg/__init__.py": "/prefix/lib/python3/site-packages/pkg/__init__.py",
	}
	plan := meson.InstallPlan{
		"python": {
			"src/pkg/__init__.py": {Destination: "{py_purelib}/pkg/__init__.py"},
		},
	}

	c, err := FromPlan(plan, installed, nil, "pkg", nil)
	if err != nil {
		t.Fatalf("FromPlan() error = %v", err)
	}
	if !c.IsPure {
		t.Error("IsPure = false, want true for python-only purelib plan")
	}
}

func TestFromPlanCompiledIntoPurelib(t *testing.T) {
	t.Parallel()

	installed := meson.Installed{
		"src/helper.so": "/prefix/lib/python3/site-packages/pkg/helper.so",
	}
	plan := meson.InstallPlan{
		"targets": {
			"src/helper.so": {Destination: "{py_purelib}/pkg/helper.so"},
		},
	}

	c, err := FromPlan(plan, installed, nil, "pkg", nil)
	if err != nil {
		t.Fatalf("FromPlan() error = %v", err)
	}
	if c.IsPure {
		t.Error("IsPure = true, want false when a non-python category installs into purelib")
	}
	if len(c.InterpretedSources) != 1 {
		t.Errorf("InterpretedSources = %v, want the purelib file", c.InterpretedSources)
	}
}

func TestFromPlanMissingInstalledEntry(t *testing.T) {
	t.Parallel()

	plan := meson.InstallPlan{
		"python": {
			"src/pkg/__init__.py": {Destination: "{py_purelib}/pkg/__init__.py"},
		},
	}

	if _, err := FromPlan(plan, meson.Installed{}, nil, "pkg", nil); err == nil {
		t.Fatal("FromPlan() error = nil, want error for unresolvable build path")
	}
}

func TestFromPlanDuplicatePathKeepsFirst(t *testing.T) {
	t.Parallel()

	installed := meson.Installed{
		"a/mod.py": "/prefix/lib/python3/site-packages/pkg/mod.py",
		"b/mod.py": "/prefix/lib/python3/site-packages/pkg/mod.py",
	}
	plan := meson.InstallPlan{
		"python": {
			"a/mod.py": {Destination: "{py_purelib}/pkg/mod.py"},
		},
		"targets": {
			"b/mod.py": {Destination: "{py_platlib}/pkg/mod.py"},
		},
	}

	c, err := FromPlan(plan, installed, nil, "pkg", nil)
	if err != nil {
		t.Fatalf("FromPlan() error = %v", err)
	}
	if got := len(c.Files()); got != 1 {
		t.Errorf("Files() packaged %d entries, want 1 for a duplicated path", got)
	}
	if len(c.InterpretedSources) != 1 || len(c.PlatformFiles) != 0 {
		t.Error("duplicate path classified under second category, want first to win")
	}
}

func TestFromInstalled(t *testing.T) {
	t.Parallel()

	installed := meson.Installed{
		"src/pkg/__init__.py": "/scratch/install/lib/python3.11/site-packages/pkg/__init__.py",
		"src/pkg/_speed.so":   "/scratch/install/lib/python3.11/site-packages/pkg/_speed.cpython-311-x86_64-linux-gnu.so",
		"src/libpkg.so":       "/scratch/install/lib/libpkg.so.1.2.3",
		"src/Pkg-1.0.typelib": "/scratch/install/lib/girepository-1.0/Pkg-1.0.typelib",
		"doc/README":          "/scratch/install/share/doc/pkg/README",
	}

	c := FromInstalled(installed, ".cpython-311-x86_64-linux-gnu.so", "pkg", nil)

	if c.IsPure {
		t.Error("IsPure = true, want false with a native module in site-packages")
	}
	if want := []string{"/scratch/install/lib/python3.11/site-packages/pkg/__init__.py"}; !slices.Equal(c.InterpretedSources, want) {
		t.Errorf("InterpretedSources = %v, want %v", c.InterpretedSources, want)
	}
	if want := []string{"/scratch/install/lib/python3.11/site-packages/pkg/_speed.cpython-311-x86_64-linux-gnu.so"}; !slices.Equal(c.PlatformFiles, want) {
		t.Errorf("PlatformFiles = %v, want %v", c.PlatformFiles, want)
	}
	if want := []string{"/scratch/install/lib/libpkg.so.1.2.3"}; !slices.Equal(c.SharedLibraries, want) {
		t.Errorf("SharedLibraries = %v, want %v", c.SharedLibraries, want)
	}
	if want := []string{"/scratch/install/lib/girepository-1.0/Pkg-1.0.typelib"}; !slices.Equal(c.Typelibs, want) {
		t.Errorf("Typelibs = %v, want %v", c.Typelibs, want)
	}
}

func TestFromInstalledBareSuffix(t *testing.T) {
	t.Parallel()

	installed := meson.Installed{
		"src/pkg/__init__.py": "/scratch/lib/python3.11/site-packages/pkg/__init__.py",
		"src/pkg/_speed.so":   "/scratch/lib/python3.11/site-packages/pkg/_speed.cpython-311-x86_64-linux-gnu.so",
	}

	// "so" and ".cpython-311-x86_64-linux-gnu.so" are equivalent spellings.
	c := FromInstalled(installed, "so", "pkg", nil)

	if c.IsPure {
		t.Error("IsPure = true, want false with a native module in site-packages")
	}
	if len(c.PlatformFiles) != 1 {
		t.Errorf("PlatformFiles = %v, want the native module", c.PlatformFiles)
	}
}

func TestFromInstalledPureTree(t *testing.T) {
	t.Parallel()

	installed := meson.Installed{
		"src/pkg/__init__.py": "/scratch/lib/python3.11/site-packages/pkg/__init__.py",
		"src/pkg/util.py":     "/scratch/lib/python3.11/site-packages/pkg/util.py",
	}

	c := FromInstalled(installed, ".so", "pkg", nil)
	if !c.IsPure {
		t.Error("IsPure = false, want true for an all-source tree")
	}
	if len(c.Files()) != 2 {
		t.Errorf("Files() = %v, want both sources", c.Files())
	}
}

func TestWheelPath(t *testing.T) {
	t.Parallel()

	installed := meson.Installed{
		"src/pkg/mod.py":      "/p/lib/python3/site-packages/pkg/mod.py",
		"src/pkg/_n.so":       "/p/lib/python3/site-packages/pkg/_n.cpython-311-x86_64-linux-gnu.so",
		"src/libdep.so":       "/p/lib/libdep.so",
		"src/Pkg-1.0.typelib": "/p/lib/girepository-1.0/Pkg-1.0.typelib",
	}
	plan := meson.InstallPlan{
		"python": {
			"src/pkg/mod.py": {Destination: "{py_purelib}/pkg/mod.py"},
		},
		"targets": {
			"src/pkg/_n.so": {Destination: "{py_platlib}/pkg/_n.cpython-311-x86_64-linux-gnu.so"},
			"src/libdep.so": {Destination: "{libdir_shared}/libdep.so"},
		},
		"data": {
			"src/Pkg-1.0.typelib": {Destination: "{datadir}/girepository-1.0/Pkg-1.0.typelib"},
		},
	}

	c, err := FromPlan(plan, installed, nil, "pkg", nil)
	if err != nil {
		t.Fatalf("FromPlan() error = %v", err)
	}

	tests := []struct {
		name      string
		installed string
		want      string
		wantOK    bool
	}{
		{
			name:      "interpreted below site-packages",
			installed: "/p/lib/python3/site-packages/pkg/mod.py",
			want:      "pkg/mod.py",
			wantOK:    true,
		},
		{
			name:      "platform module below site-packages",
			installed: "/p/lib/python3/site-packages/pkg/_n.cpython-311-x86_64-linux-gnu.so",
			want:      "pkg/_n.cpython-311-x86_64-linux-gnu.so",
			wantOK:    true,
		},
		{
			name:      "shared library under module .libs",
			installed: "/p/lib/libdep.so",
			want:      "pkg.libs/libdep.so",
			wantOK:    true,
		},
		{
			name:      "typelib under module data subtree",
			installed: "/p/lib/girepository-1.0/Pkg-1.0.typelib",
			want:      "pkg.data/platlib/girepository-1.0/Pkg-1.0.typelib",
			wantOK:    true,
		},
		{
			name:      "unclassified path",
			installed: "/p/share/doc/manual.txt",
			wantOK:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := c.WheelPath(tt.installed)
			if ok != tt.wantOK {
				t.Fatalf("WheelPath(%q) ok = %v, want %v", tt.installed, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("WheelPath(%q) = %q, want %q", tt.installed, got, tt.want)
			}
		})
	}
}

func TestWheelPathOutsideSitePackages(t *testing.T) {
	t.Parallel()

	installed := meson.Installed{
		"src/stray.py": "/p/lib/python3/stray.py",
	}
	plan := meson.InstallPlan{
		"python": {
			"src/stray.py": {Destination: "{py_purelib}/stray.py"},
		},
	}

	c, err := FromPlan(plan, installed, nil, "pkg", nil)
	if err != nil {
		t.Fatalf("FromPlan() error = %v", err)
	}
	if _, ok := c.WheelPath("/p/lib/python3/stray.py"); ok {
		t.Error("WheelPath mapped a source with no site-packages ancestor, want omission")
	}
}

func TestSitePackagesRelUsesDeepestSegment(t *testing.T) {
	t.Parallel()

	rel, ok := sitePackagesRel("/a/site-packages/venv/lib/site-packages/pkg/mod.py")
	if !ok {
		t.Fatal("sitePackagesRel() ok = false, want true")
	}
	if want := "pkg/mod.py"; rel != want {
		t.Errorf("sitePackagesRel() = %q, want %q", rel, want)
	}
}

func TestTerminalSuffix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"mod.cpython-311-x86_64-linux-gnu.so", "so"},
		{"libfoo.so.1", "1"},
		{"plain", ""},
		{"/dir/with.dots/plain", ""},
	}

	for _, tt := range tests {
		if got := terminalSuffix(tt.path); got != tt.want {
			t.Errorf("terminalSuffix(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestInSuffixChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path   string
		suffix string
		want   bool
	}{
		{"libfoo.so", "so", true},
		{"libfoo.so.1.2.3", "so", true},
		{"libfoo.a", "so", false},
		{"so", "so", false},
	}

	for _, tt := range tests {
		if got := inSuffixChain(tt.path, tt.suffix); got != tt.want {
			t.Errorf("inSuffixChain(%q, %q) = %v, want %v", tt.path, tt.suffix, got, tt.want)
		}
	}
}
