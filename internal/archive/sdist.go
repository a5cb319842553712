// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// SourceDateEpoch reads the reproducible-build timestamp override from the
// environment. ok is false when SOURCE_DATE_EPOCH is unset or not an
// integer second count.
func SourceDateEpoch() (time.Time, bool) {
	raw := os.Getenv("SOURCE_DATE_EPOCH")
	if raw == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}

// ExtractTarGz unpacks a gzip-compressed tarball into destDir. Entry paths
// that would escape destDir are rejected.
func ExtractTarGz(tarball, destDir string) (err error) {
	f, err := os.Open(tarball)
	if err != nil {
		return fmt.Errorf("failed to open source export: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read source export: %w", err)
	}
	defer func() {
		if closeErr := gz.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	tr := tar.NewReader(gz)
	for {
		hdr, nextErr := tr.Next()
		if nextErr == io.EOF {
			return nil
		}
		if nextErr != nil {
			return fmt.Errorf("failed to read source export: %w", nextErr)
		}

		destPath := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		rel, relErr := filepath.Rel(destDir, destPath)
		if relErr != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("invalid path in source export: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if mkdirErr := os.MkdirAll(destPath, hdr.FileInfo().Mode().Perm()); mkdirErr != nil {
				return fmt.Errorf("failed to create directory: %w", mkdirErr)
			}

		case tar.TypeReg:
			if extractErr := extractRegular(tr, hdr, destPath); extractErr != nil {
				return fmt.Errorf("failed to extract %s: %w", hdr.Name, extractErr)
			}

		case tar.TypeSymlink:
			if mkdirErr := os.MkdirAll(filepath.Dir(destPath), 0o755); mkdirErr != nil {
				return fmt.Errorf("failed to create parent directory: %w", mkdirErr)
			}
			if linkErr := os.Symlink(hdr.Linkname, destPath); linkErr != nil {
				return fmt.Errorf("failed to extract %s: %w", hdr.Name, linkErr)
			}
		}
	}
}

func extractRegular(tr *tar.Reader, hdr *tar.Header, destPath string) (err error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(dst, tr); err != nil {
		return err
	}

	// Keep the exported timestamps so an unpinned repack carries them over.
	if !hdr.ModTime.IsZero() {
		atime := hdr.AccessTime
		if atime.IsZero() {
			atime = hdr.ModTime
		}
		_ = os.Chtimes(destPath, atime, hdr.ModTime)
	}
	return nil
}

// WriteSdist packs the directory rootName under parentDir as a
// gzip-compressed PAX tar at finalPath. A non-zero epoch pins the gzip
// header time and every entry's times and ownership, making the output
// byte-reproducible; a zero epoch passes filesystem times through.
func WriteSdist(finalPath, parentDir, rootName string, epoch time.Time) (err error) {
	staging, err := os.CreateTemp(filepath.Dir(finalPath), filepath.Base(finalPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to stage sdist: %w", err)
	}
	defer func() {
		if err != nil {
			_ = staging.Close()
			_ = os.Remove(staging.Name())
		}
	}()

	if err = writeTarGz(staging, parentDir, rootName, epoch); err != nil {
		return err
	}
	if err = staging.Sync(); err != nil {
		return fmt.Errorf("failed to finalize sdist: %w", err)
	}
	if err = staging.Close(); err != nil {
		return fmt.Errorf("failed to finalize sdist: %w", err)
	}
	if err = os.Rename(staging.Name(), finalPath); err != nil {
		return fmt.Errorf("failed to move sdist into place: %w", err)
	}
	return nil
}

func writeTarGz(w io.Writer, parentDir, rootName string, epoch time.Time) error {
	gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	if epoch.IsZero() {
		gz.ModTime = time.Now()
	} else {
		gz.ModTime = epoch
	}

	tw := tar.NewWriter(gz)
	root := filepath.Join(parentDir, rootName)

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		return addEntry(tw, parentDir, p, d, epoch)
	})
	if walkErr != nil {
		return fmt.Errorf("failed to pack source tree: %w", walkErr)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize source tree: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finalize gzip stream: %w", err)
	}
	return nil
}

func addEntry(tw *tar.Writer, parentDir, p string, d fs.DirEntry, epoch time.Time) (err error) {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(p); err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(parentDir, p)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(rel)
	if d.IsDir() {
		hdr.Name += "/"
	}
	hdr.Format = tar.FormatPAX

	if !epoch.IsZero() {
		hdr.ModTime = epoch
		hdr.AccessTime = time.Time{}
		hdr.ChangeTime = time.Time{}
		hdr.Uid = 0
		hdr.Gid = 0
		hdr.Uname = ""
		hdr.Gname = ""
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	src, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(tw, src); err != nil {
		return err
	}
	return nil
}
