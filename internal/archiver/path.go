package archiver

import (
	"fmt"
	"io/fs"
)

// Path is an absolute, stat-validated filesystem path produced by
// FilesystemManager.Resolve.
type Path struct {
	abs  string
	info fs.FileInfo
}

// NewPath is for FilesystemManager implementations.
func NewPath(abs string, info fs.FileInfo) *Path {
	return &Path{abs: abs, info: info}
}

func (p *Path) String() string { return p.abs }

func (p *Path) IsDir() bool { return p.info != nil && p.info.IsDir() }

// Info is the stat result captured at resolution time.
func (p *Path) Info() fs.FileInfo { return p.info }

// RequireDir returns an error unless p is a directory.
func (p *Path) RequireDir() error {
	if !p.IsDir() {
		return fmt.Errorf("not a directory: %s", p.abs)
	}
	return nil
}
