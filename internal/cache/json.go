package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"archiver-go/internal/archiver"
)

// DefaultJSONFile is the cache file written into the base directory.
const DefaultJSONFile = ".archiverFileData.json"

// JSONCache stores the discovered records of one root as a JSON array in a
// single file. Whatever the file holds is returned regardless of root.
type JSONCache struct {
	path string
}

// NewJSONCache creates a cache backed by the file at path.
func NewJSONCache(path string) *JSONCache {
	return &JSONCache{path: path}
}

// Path returns the backing file.
func (c *JSONCache) Path() string { return c.path }

func (c *JSONCache) Load(root string) ([]*archiver.FileRecord, bool, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache %s: %w", c.path, err)
	}

	var records []*archiver.FileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("decoding cache %s: %w", c.path, err)
	}
	return records, true, nil
}

// Save writes records to a temporary file beside the cache and renames it
// into place.
func (c *JSONCache) Save(root string, records []*archiver.FileRecord) error {
	if records == nil {
		records = []*archiver.FileRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".archiver-cache-*")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("renaming cache into place: %w", err)
	}
	success = true
	return nil
}

func (c *JSONCache) Close() error { return nil }

var _ archiver.DiscoveryCache = (*JSONCache)(nil)
