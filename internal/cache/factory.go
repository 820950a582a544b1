package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"archiver-go/internal/archiver"
	"archiver-go/internal/config"
)

// NewCacheFromConfig creates a DiscoveryCache based on the cache config type.
// The JSON cache defaults to a file in basePath; the SQLite cache defaults
// to a database under homeDir.
func NewCacheFromConfig(cfg config.CacheConfig, basePath, homeDir string, clock archiver.Clock) (archiver.DiscoveryCache, error) {
	switch cfg.Type {
	case "json", "":
		path := cfg.Path
		if path == "" {
			if basePath == "" {
				return nil, fmt.Errorf("base path required for json cache")
			}
			path = filepath.Join(basePath, DefaultJSONFile)
		}
		return NewJSONCache(path), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			if homeDir == "" {
				return nil, fmt.Errorf("home directory required for sqlite cache")
			}
			path = filepath.Join(homeDir, "cache", "discovery.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		c, err := NewSQLiteCache(path, clock)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "memory":
		return NewMemoryCache(), nil
	case "none":
		return NopCache{}, nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
