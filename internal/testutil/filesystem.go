package testutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"archiver-go/internal/archiver"
	ofs "archiver-go/internal/fs"
)

// WriteTree creates files under root. Keys are slash-separated relative
// paths, values are file contents.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(rel)), content)
	}
}

// WriteFile creates path and its parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

// FaultyFilesystem wraps the real filesystem and injects failures:
// transfers whose source base name is listed in FailNames fail, those listed
// in VanishNames lose their source mid-transfer and then fail, and the
// first MissingDirWrites writes into a directory report it as not found,
// the way a lagging filesystem does right after creating it.
type FaultyFilesystem struct {
	*ofs.OSFilesystemManager

	FailNames        map[string]bool
	VanishNames      map[string]bool
	MissingDirWrites int

	mu            sync.Mutex
	missingSoFar  int
	writeAttempts int
}

// NewFaultyFilesystem wraps a fresh OSFilesystemManager.
func NewFaultyFilesystem() *FaultyFilesystem {
	return &FaultyFilesystem{OSFilesystemManager: ofs.NewOSFilesystemManager(nil), FailNames: map[string]bool{}, VanishNames: map[string]bool{}}
}

func (f *FaultyFilesystem) WriteFile(path string, data []byte) error {
	f.mu.Lock()
	f.writeAttempts++
	lagging := f.missingSoFar < f.MissingDirWrites
	if lagging {
		f.missingSoFar++
	}
	f.mu.Unlock()

	if lagging {
		return &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return f.OSFilesystemManager.WriteFile(path, data)
}

// WriteAttempts counts WriteFile calls, failed ones included.
func (f *FaultyFilesystem) WriteAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeAttempts
}

func (f *FaultyFilesystem) CopyFile(src, dst string) error {
	if err := f.injected(src); err != nil {
		return err
	}
	return f.OSFilesystemManager.CopyFile(src, dst)
}

func (f *FaultyFilesystem) MoveFile(src, dst string) error {
	if err := f.injected(src); err != nil {
		return err
	}
	return f.OSFilesystemManager.MoveFile(src, dst)
}

func (f *FaultyFilesystem) injected(src string) error {
	name := filepath.Base(src)
	if f.VanishNames[name] {
		os.Remove(src)
		return fmt.Errorf("injected failure for %s after it vanished", name)
	}
	if f.FailNames[name] {
		return fmt.Errorf("injected failure for %s", name)
	}
	return nil
}

var _ archiver.FilesystemManager = (*FaultyFilesystem)(nil)
