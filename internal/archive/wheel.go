// SPDX-License-Identifier: MPL-2.0

// Package archive serializes the two distribution artifacts: the wheel, a
// deflate zip carrying a RECORD manifest, and the sdist, a PAX tar re-packed
// from the build tool's source export. Both write through a temporary file
// in the target directory and rename into place, so a failed pack never
// leaves a truncated artifact behind.
package archive

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// wheelRecord is one RECORD manifest line: archive path, digest, byte size.
type wheelRecord struct {
	path   string
	digest string
	size   int64
}

// Wheel assembles a wheel archive. Entries are deflate-compressed and
// hashed as they are copied in; Close appends the RECORD manifest,
// finalizes the zip and renames the staged file onto the final path.
type Wheel struct {
	final   string
	staging *os.File
	zw      *zip.Writer
	records []wheelRecord
	done    bool
}

// NewWheel stages a wheel archive targeting finalPath. The staging file
// lives alongside it so the final rename never crosses filesystems.
func NewWheel(finalPath string) (*Wheel, error) {
	staging, err := os.CreateTemp(filepath.Dir(finalPath), filepath.Base(finalPath)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to stage wheel: %w", err)
	}
	return &Wheel{final: finalPath, staging: staging, zw: zip.NewWriter(staging)}, nil
}

// Add copies sourcePath into the archive under archivePath and records its
// sha256 digest for the RECORD manifest. Archive paths use forward slashes.
func (w *Wheel) Add(archivePath, sourcePath string) (err error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", sourcePath, err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", sourcePath, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create entry header for %s: %w", archivePath, err)
	}
	header.Name = filepath.ToSlash(archivePath)
	header.Method = zip.Deflate

	entry, err := w.zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", archivePath, err)
	}

	digest := sha256.New()
	size, err := io.Copy(entry, io.TeeReader(src, digest))
	if err != nil {
		return fmt.Errorf("failed to write entry %s: %w", archivePath, err)
	}

	w.records = append(w.records, wheelRecord{
		path:   header.Name,
		digest: "sha256=" + base64.RawURLEncoding.EncodeToString(digest.Sum(nil)),
		size:   size,
	})
	return nil
}

// Close writes the RECORD manifest under recordPath, finalizes the zip and
// renames the archive onto the final path. On failure the staged file is
// discarded and the final path left untouched.
func (w *Wheel) Close(recordPath string) error {
	if err := w.finalize(recordPath); err != nil {
		w.Abort()
		return err
	}
	w.done = true
	return nil
}

func (w *Wheel) finalize(recordPath string) error {
	var manifest strings.Builder
	for _, rec := range w.records {
		fmt.Fprintf(&manifest, "%s,%s,%d\n", rec.path, rec.digest, rec.size)
	}
	// RECORD lists itself without hash or size.
	fmt.Fprintf(&manifest, "%s,,\n", recordPath)

	entry, err := w.zw.Create(recordPath)
	if err != nil {
		return fmt.Errorf("failed to create RECORD entry: %w", err)
	}
	if _, err := io.WriteString(entry, manifest.String()); err != nil {
		return fmt.Errorf("failed to write RECORD entry: %w", err)
	}

	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize wheel: %w", err)
	}
	if err := w.staging.Sync(); err != nil {
		return fmt.Errorf("failed to finalize wheel: %w", err)
	}
	if err := w.staging.Close(); err != nil {
		return fmt.Errorf("failed to finalize wheel: %w", err)
	}
	if err := os.Rename(w.staging.Name(), w.final); err != nil {
		return fmt.Errorf("failed to move wheel into place: %w", err)
	}
	return nil
}

// Abort discards the staged archive. Safe to defer alongside Close.
func (w *Wheel) Abort() {
	if w.done {
		return
	}
	w.done = true
	_ = w.zw.Close()
	_ = w.staging.Close()
	_ = os.Remove(w.staging.Name())
}
