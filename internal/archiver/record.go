package archiver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
)

// SidecarSuffix is appended to a principal file's path to find its
// upstream metadata file.
const SidecarSuffix = ".json"

// PathPair is one physical file carried by a FileRecord: where it lives now
// and where it goes beneath a disc directory. Relative always uses '/'.
type PathPair struct {
	Source   string `json:"source"`
	Relative string `json:"relative"`
}

// FileRecord is one unit to archive: a principal file plus its optional
// sidecar, moved or copied together.
//
// The set of physical paths is derived from the relative path prefix, so
// every Relative in paths begins with prefix. Size is the sum over all of
// them.
type FileRecord struct {
	principalPath string
	sidecarPath   string
	size          int64
	hash          string
	prefix        string
	paths         []PathPair
}

// NewFileRecord builds a FileRecord for path, which must lie under root.
// The relative path becomes prefix + (path with root stripped). A sidecar at
// path + ".json" is folded into the unit. The principal file is hashed with
// SHA-256 before returning; the sidecar is not part of the hash.
func NewFileRecord(fsys FilesystemManager, root, path, prefix string) (*FileRecord, error) {
	rel, err := relativeTo(root, path)
	if err != nil {
		return nil, err
	}

	info, err := fsys.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	r := &FileRecord{
		principalPath: path,
		size:          info.Size(),
		prefix:        prefix,
		paths:         []PathPair{{Source: path, Relative: prefix + rel}},
	}

	sidecar := path + SidecarSuffix
	sidecarInfo, err := fsys.Stat(sidecar)
	switch {
	case err == nil && !sidecarInfo.IsDir():
		r.sidecarPath = sidecar
		r.size += sidecarInfo.Size()
		r.paths = append(r.paths, PathPair{Source: sidecar, Relative: prefix + rel + SidecarSuffix})
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("stat sidecar %s: %w", sidecar, err)
	}

	r.hash, err = hashFile(fsys, path)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// RestoreFileRecord rebuilds a FileRecord from persisted attributes,
// rejecting combinations that break the record's invariants.
func RestoreFileRecord(principalPath, sidecarPath string, size int64, hash, prefix string, paths []PathPair) (*FileRecord, error) {
	if len(paths) == 0 || paths[0].Source != principalPath {
		return nil, fmt.Errorf("record %s: first path must be the principal file", principalPath)
	}
	wantPaths := 1
	if sidecarPath != "" {
		wantPaths = 2
		if paths[len(paths)-1].Source != sidecarPath {
			return nil, fmt.Errorf("record %s: sidecar %s missing from paths", principalPath, sidecarPath)
		}
	}
	if len(paths) != wantPaths {
		return nil, fmt.Errorf("record %s: expected %d paths, got %d", principalPath, wantPaths, len(paths))
	}
	for _, p := range paths {
		if !strings.HasPrefix(p.Relative, prefix) {
			return nil, fmt.Errorf("record %s: relative path %q does not start with prefix %q", principalPath, p.Relative, prefix)
		}
	}
	if size < 0 {
		return nil, fmt.Errorf("record %s: negative size %d", principalPath, size)
	}

	return &FileRecord{
		principalPath: principalPath,
		sidecarPath:   sidecarPath,
		size:          size,
		hash:          hash,
		prefix:        prefix,
		paths:         append([]PathPair(nil), paths...),
	}, nil
}

func (r *FileRecord) PrincipalPath() string         { return r.principalPath }
func (r *FileRecord) PrincipalRelativePath() string { return r.paths[0].Relative }
func (r *FileRecord) SidecarPath() string           { return r.sidecarPath }
func (r *FileRecord) Size() int64                   { return r.size }
func (r *FileRecord) Hash() string                  { return r.hash }
func (r *FileRecord) RelativePathPrefix() string    { return r.prefix }

// Name is the base name of the principal file.
func (r *FileRecord) Name() string { return filepath.Base(r.principalPath) }

// Paths returns a copy of every physical path the record carries,
// principal first.
func (r *FileRecord) Paths() []PathPair {
	return append([]PathPair(nil), r.paths...)
}

// ChangeRelativePathPrefix replaces the prefix of every relative path.
// Either all paths are rewritten or none are.
func (r *FileRecord) ChangeRelativePathPrefix(newPrefix string) error {
	rewritten := make([]PathPair, len(r.paths))
	for i, p := range r.paths {
		if !strings.HasPrefix(p.Relative, r.prefix) {
			return fmt.Errorf("relative path %q does not start with prefix %q", p.Relative, r.prefix)
		}
		rewritten[i] = PathPair{Source: p.Source, Relative: newPrefix + strings.TrimPrefix(p.Relative, r.prefix)}
	}
	r.paths = rewritten
	r.prefix = newPrefix
	return nil
}

// recordJSON is the persisted form of a FileRecord.
type recordJSON struct {
	PrincipalPath         string     `json:"principalPath"`
	PrincipalRelativePath string     `json:"principalRelativePath"`
	SidecarPath           string     `json:"sidecarPath,omitempty"`
	Size                  int64      `json:"size"`
	Hash                  string     `json:"hash"`
	RelativePathPrefix    string     `json:"relativePathPrefix"`
	Paths                 []PathPair `json:"paths"`
}

func (r *FileRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		PrincipalPath:         r.principalPath,
		PrincipalRelativePath: r.PrincipalRelativePath(),
		SidecarPath:           r.sidecarPath,
		Size:                  r.size,
		Hash:                  r.hash,
		RelativePathPrefix:    r.prefix,
		Paths:                 r.paths,
	})
}

func (r *FileRecord) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	restored, err := RestoreFileRecord(raw.PrincipalPath, raw.SidecarPath, raw.Size, raw.Hash, raw.RelativePathPrefix, raw.Paths)
	if err != nil {
		return err
	}
	if restored.PrincipalRelativePath() != raw.PrincipalRelativePath {
		return fmt.Errorf("record %s: principal relative path %q disagrees with paths", raw.PrincipalPath, raw.PrincipalRelativePath)
	}
	*r = *restored
	return nil
}

// TotalSize sums the sizes of records.
func TotalSize(records []*FileRecord) int64 {
	var total int64
	for _, r := range records {
		total += r.size
	}
	return total
}

// relativeTo strips root from path and normalizes separators to '/'.
func relativeTo(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("calculating relative path: %w", err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is not inside %s", path, root)
	}
	return filepath.ToSlash(rel), nil
}

func hashFile(fsys FilesystemManager, path string) (string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
