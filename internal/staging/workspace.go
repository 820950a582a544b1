package staging

import (
	"fmt"
	"os"
	"path/filepath"

	"archiver-go/internal/archiver"
)

// Workspace is a private scratch directory owned by one run. Downloads,
// expanded archives and the staged metadata payload live here until Close.
type Workspace struct {
	root string
}

// NewWorkspace creates parent/archiver-<id>. An empty parent means the
// system temp directory.
func NewWorkspace(parent string, idgen archiver.IDGenerator) (*Workspace, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	root := filepath.Join(parent, "archiver-"+idgen.New())
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create staging workspace: %w", err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string { return w.root }

// Dir returns a subdirectory of the workspace, creating it if needed.
func (w *Workspace) Dir(elem ...string) (string, error) {
	dir := filepath.Join(append([]string{w.root}, elem...)...)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating staging directory %s: %w", dir, err)
	}
	return dir, nil
}

// Close removes the workspace and everything in it. It is safe to call
// more than once.
func (w *Workspace) Close() error {
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("removing staging workspace: %w", err)
	}
	return nil
}
