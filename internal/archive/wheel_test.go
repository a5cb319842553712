// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWheelRoundTrip(t *testing.T) {
	t.Parallel()

	srcDir := t.TempDir()
	module := []byte("print('hello')\n")
	modulePath := filepath.Join(srcDir, "mod.py")
	if err := os.WriteFile(modulePath, module, 0o644); err != nil {
		t.Fatal(err)
	}
	native := []byte{0x7f, 'E', 'L', 'F', 0x02}
	nativePath := filepath.Join(srcDir, "speed.so")
	if err := os.WriteFile(nativePath, native, 0o755); err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	final := filepath.Join(outDir, "pkg-1.0-py3-none-any.whl")

	w, err := NewWheel(final)
	if err != nil {
		t.Fatalf("NewWheel() error = %v", err)
	}
	if err := w.Add("pkg/mod.py", modulePath); err != nil {
		t.Fatalf("Add(mod.py) error = %v", err)
	}
	if err := w.Add("pkg/speed.so", nativePath); err != nil {
		t.Fatalf("Add(speed.so) error = %v", err)
	}
	if err := w.Close("pkg-1.0.dist-info/RECORD"); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	zr, err := zip.OpenReader(final)
	if err != nil {
		t.Fatalf("opening wheel: %v", err)
	}
	defer zr.Close()

	wantOrder := []string{"pkg/mod.py", "pkg/speed.so", "pkg-1.0.dist-info/RECORD"}
	if len(zr.File) != len(wantOrder) {
		t.Fatalf("wheel has %d entries, want %d", len(zr.File), len(wantOrder))
	}
	for i, want := range wantOrder {
		if zr.File[i].Name != want {
			t.Errorf("entry[%d] = %q, want %q", i, zr.File[i].Name, want)
		}
		if zr.File[i].Method != zip.Deflate {
			t.Errorf("entry[%d] method = %d, want deflate", i, zr.File[i].Method)
		}
	}

	got := readWheelEntry(t, &zr.Reader, "pkg/mod.py")
	if !bytes.Equal(got, module) {
		t.Errorf("archived mod.py = %q, want %q", got, module)
	}

	moduleDigest := sha256.Sum256(module)
	nativeDigest := sha256.Sum256(native)
	wantRecord := fmt.Sprintf("pkg/mod.py,sha256=%s,%d\n",
		base64.RawURLEncoding.EncodeToString(moduleDigest[:]), len(module))
	wantRecord += fmt.Sprintf("pkg/speed.so,sha256=%s,%d\n",
		base64.RawURLEncoding.EncodeToString(nativeDigest[:]), len(native))
	wantRecord += "pkg-1.0.dist-info/RECORD,,\n"

	record := string(readWheelEntry(t, &zr.Reader, "pkg-1.0.dist-info/RECORD"))
	if record != wantRecord {
		t.Errorf("RECORD =\n%s\nwant\n%s", record, wantRecord)
	}
}

func readWheelEntry(t *testing.T, zr *zip.Reader, name string) []byte {
	t.Helper()
	f, err := zr.Open(name)
	if err != nil {
		t.Fatalf("opening entry %s: %v", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("reading entry %s: %v", name, err)
	}
	return data
}

func TestWheelAbortLeavesNothing(t *testing.T) {
	t.Parallel()

	srcDir := t.TempDir()
	source := filepath.Join(srcDir, "mod.py")
	if err := os.WriteFile(source, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	final := filepath.Join(outDir, "pkg-1.0-py3-none-any.whl")

	w, err := NewWheel(final)
	if err != nil {
		t.Fatalf("NewWheel() error = %v", err)
	}
	if err := w.Add("pkg/mod.py", source); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	w.Abort()

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("output directory not empty after Abort: %s", strings.Join(names, ", "))
	}
}

func TestWheelAddMissingSource(t *testing.T) {
	t.Parallel()

	w, err := NewWheel(filepath.Join(t.TempDir(), "pkg-1.0-py3-none-any.whl"))
	if err != nil {
		t.Fatalf("NewWheel() error = %v", err)
	}
	defer w.Abort()

	if err := w.Add("pkg/mod.py", filepath.Join(t.TempDir(), "absent.py")); err == nil {
		t.Error("Add() error = nil, want failure for missing source")
	}
}
