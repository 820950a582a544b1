package archiver

import (
	"io"
	"io/fs"
)

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access so the pipeline can be exercised against
// fault-injecting filesystems in tests.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path, stats it, and validates
	// it's a regular file or directory (not a symlink, device, etc.).
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Stat returns fresh file info for a path.
	Stat(path string) (fs.FileInfo, error)

	// ListTree lists the regular files under root as ordered groups.
	// The first group holds the files directly inside root; every following
	// group holds the full recursive listing of one immediate subdirectory,
	// in directory-name order.
	ListTree(root string) ([][]string, error)

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(dir string) error

	// WriteFile creates or truncates path and writes data to it.
	WriteFile(path string, data []byte) error

	// Remove deletes a single file.
	Remove(path string) error

	// CopyFile copies src to dst, overwriting dst if it exists.
	CopyFile(src, dst string) error

	// MoveFile moves src to dst, overwriting dst if it exists.
	MoveFile(src, dst string) error
}
