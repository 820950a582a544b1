package extras

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Expand extracts the zip at zipPath into dir. When every entry sits under
// one top-level folder, as with repository snapshots, that folder is
// stripped. Entries escaping dir are rejected.
func Expand(zipPath, dir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("opening zip %s: %w", zipPath, err)
	}
	defer r.Close()

	strip := commonRoot(r.File)

	for _, f := range r.File {
		name := strings.TrimPrefix(f.Name, strip)
		if name == "" {
			continue
		}
		target, err := safeJoin(dir, name)
		if err != nil {
			return fmt.Errorf("expanding %s: %w", zipPath, err)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("expanding %s: %w", zipPath, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return dst.Close()
}

// commonRoot returns "<folder>/" when every entry lives under that single
// folder, otherwise "".
func commonRoot(files []*zip.File) string {
	var root string
	for _, f := range files {
		first, rest, nested := strings.Cut(f.Name, "/")
		if !nested || (rest == "" && !f.FileInfo().IsDir()) {
			return ""
		}
		if root == "" {
			root = first
		} else if root != first {
			return ""
		}
	}
	if root == "" {
		return ""
	}
	return root + "/"
}

// safeJoin joins an archive entry name onto dir, rejecting absolute names
// and names that climb out of dir.
func safeJoin(dir, name string) (string, error) {
	clean := path.Clean("/" + name)
	if name != "" && (strings.HasPrefix(name, "/") || strings.Contains(name, `\`) || clean != "/"+strings.TrimSuffix(name, "/")) {
		return "", fmt.Errorf("illegal entry name %q", name)
	}
	return filepath.Join(dir, filepath.FromSlash(clean)), nil
}
