// Package bundle writes and extracts the tar archive of the manifest tree
// that the collector serves and every agent applies.
package bundle

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Top-level directories of a bundle
const (
	ManifestsDir = "manifests"
	ModulesDir   = "modules"
)

// ErrUnsafePath is returned by Extract for entries escaping the destination
var ErrUnsafePath = errors.New("unsafe path in archive")

// Write archives the named subdirectories of root into w. Missing optional
// directories are skipped; the first directory is required.
func Write(w io.Writer, root string, dirs ...string) error {
	tw := tar.NewWriter(w)

	for i, dir := range dirs {
		src := filepath.Join(root, dir)
		info, err := os.Stat(src)
		if err != nil {
			if i > 0 && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", src, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", src)
		}

		if err := addDir(tw, src, dir); err != nil {
			return err
		}
	}

	return tw.Close()
}

func addDir(tw *tar.Writer, src, prefix string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		name := path.Join(prefix, filepath.ToSlash(rel))

		info, err := d.Info()
		if err != nil {
			return err
		}

		// Only directories and regular files are shipped
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to build header for %s: %w", p, err)
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write header for %s: %w", name, err)
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("failed to archive %s: %w", name, err)
		}
		return nil
	})
}

// Extract unpacks a tar stream into dest, which must already exist.
// Entries that would land outside dest are rejected.
func Extract(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	entries := 0

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}
		entries++

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		default:
			// Links and devices are never produced by Write
			continue
		}
	}

	if entries == 0 {
		return fmt.Errorf("failed to read archive: no entries")
	}
	return nil
}

func safeJoin(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return filepath.Join(dest, clean), nil
}

func writeFile(target string, r io.Reader, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to extract %s: %w", target, err)
	}
	return f.Close()
}
