package repo

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minios-linux/stringlate/lockfile"
	"github.com/minios-linux/stringlate/settings"
)

// ErrInvalidArchive is returned by ImportZip for archives that do not hold
// exactly one project directory.
var ErrInvalidArchive = errors.New("repo: archive is not a project backup")

// maxImportFile bounds the size of a single extracted file.
const maxImportFile = 64 << 20

// ExportZip writes the project as a zip archive whose single top-level
// directory is the project root.
func (h *Handler) ExportZip(w io.Writer) error {
	zw := zip.NewWriter(w)
	base := filepath.Base(h.root)

	err := filepath.WalkDir(h.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Name() == lockfile.LockFileName {
			return nil
		}
		rel, err := filepath.Rel(h.root, p)
		if err != nil {
			return err
		}
		name := path.Join(base, filepath.ToSlash(rel))
		if d.IsDir() {
			_, err := zw.Create(name + "/")
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = name
		hdr.Method = zip.Deflate

		dst, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(dst, f)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("exporting %s: %w", h.root, err)
	}
	return zw.Close()
}

// ImportZip replaces the project with the content of a backup made by
// ExportZip. The previous content is restored if the swap fails.
func (h *Handler) ImportZip(r io.ReaderAt, size int64) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	parent := filepath.Dir(h.root)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(parent, ".import-")
	if err != nil {
		return fmt.Errorf("creating import directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := extract(zr, tmp); err != nil {
		return err
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return fmt.Errorf("%w: expected one top-level directory", ErrInvalidArchive)
	}
	imported := filepath.Join(tmp, entries[0].Name())
	if !settings.ProjectExists(imported) {
		return fmt.Errorf("%w: no %s found", ErrInvalidArchive, settings.ProjectFileName)
	}

	backup := filepath.Join(tmp, ".backup")
	hadRoot := true
	if err := os.Rename(h.root, backup); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("moving current project aside: %w", err)
		}
		hadRoot = false
	}
	if err := os.Rename(imported, h.root); err != nil {
		if hadRoot {
			if rerr := os.Rename(backup, h.root); rerr != nil {
				return fmt.Errorf("installing imported project: %w (restoring previous state failed: %v)", err, rerr)
			}
		}
		return fmt.Errorf("installing imported project: %w", err)
	}

	fresh, err := OpenRoot(h.root)
	if err != nil {
		return err
	}
	*h = *fresh
	return nil
}

// ArchiveRoot returns the name of the project directory stored in a backup
// made by ExportZip.
func ArchiveRoot(r io.ReaderAt, size int64) (string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	root := ""
	for _, f := range zr.File {
		top, _, _ := strings.Cut(path.Clean(f.Name), "/")
		if top == "." || top == ".." || (root != "" && top != root) {
			return "", fmt.Errorf("%w: expected one top-level directory", ErrInvalidArchive)
		}
		root = top
	}
	if root == "" {
		return "", fmt.Errorf("%w: archive is empty", ErrInvalidArchive)
	}
	return root, nil
}

func extract(zr *zip.Reader, dir string) error {
	for _, f := range zr.File {
		name := path.Clean(f.Name)
		if path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
			return fmt.Errorf("%w: unsafe path %q", ErrInvalidArchive, f.Name)
		}
		dst := filepath.Join(dir, filepath.FromSlash(name))

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dst, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if err := extractFile(f, dst); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(rc, maxImportFile+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	if n > maxImportFile {
		return fmt.Errorf("%w: %s is too large", ErrInvalidArchive, f.Name)
	}
	return nil
}
