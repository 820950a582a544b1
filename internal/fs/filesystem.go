package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"archiver-go/internal/archiver"
)

// OSFilesystemManager is the real filesystem implementation of
// archiver.FilesystemManager.
type OSFilesystemManager struct {
	ignore []string
}

// NewOSFilesystemManager creates a filesystem manager that skips files
// matching ignore (plus each root's .archiverignore) during discovery.
func NewOSFilesystemManager(ignore []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: ignore}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*archiver.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if mode&(os.ModeDevice|os.ModeNamedPipe|os.ModeSocket) != 0 {
		return nil, fmt.Errorf("special files not supported: %s", absPath)
	}

	return archiver.NewPath(absPath, info), nil
}

func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// ListTree returns the files directly in root, then one group per
// subdirectory. Subdirectories are walked concurrently.
func (m *OSFilesystemManager) ListTree(root string) ([][]string, error) {
	matcher, err := LoadIgnoreMatcher(root, m.ignore)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var top []string
	var subdirs []string
	for _, entry := range entries {
		if matcher.Match(entry.Name()) {
			continue
		}
		switch {
		case entry.IsDir():
			subdirs = append(subdirs, filepath.Join(root, entry.Name()))
		case entry.Type().IsRegular():
			top = append(top, filepath.Join(root, entry.Name()))
		}
	}

	groups := make([][]string, 1+len(subdirs))
	groups[0] = top
	errs := make([]error, len(subdirs))

	var wg sync.WaitGroup
	for i, dir := range subdirs {
		wg.Add(1)
		go func(i int, dir string) {
			defer wg.Done()
			groups[i+1], errs[i] = walkFiles(root, dir, matcher)
		}(i, dir)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func walkFiles(root, dir string, matcher *IgnoreMatcher) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if matcher.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return files, nil
}

func (m *OSFilesystemManager) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

func (m *OSFilesystemManager) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}

func (m *OSFilesystemManager) Remove(path string) error {
	return os.Remove(path)
}

// CopyFile copies src over dst through a temp file in dst's directory, so
// a reader never sees a half-written dst.
func (m *OSFilesystemManager) CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, in)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("copying data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if written != info.Size() {
		return fmt.Errorf("size mismatch: expected %d bytes, copied %d", info.Size(), written)
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting mode: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}

// MoveFile renames src to dst, falling back to copy and delete when they
// are on different filesystems.
func (m *OSFilesystemManager) MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !isCrossDevice(err) {
		return err
	}
	if err := m.CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// Compile-time check that OSFilesystemManager implements archiver.FilesystemManager
var _ archiver.FilesystemManager = (*OSFilesystemManager)(nil)
