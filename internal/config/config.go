package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Megabyte is the unit disc capacities are configured in.
const Megabyte = 1_000_000

// Disabled turns off an extras source that would otherwise use its default.
const Disabled = "-"

// Config represents the main configuration for archiver.
type Config struct {
	BasePath         string           `toml:"base_path"`
	DestinationPath  string           `toml:"destination_path"`
	LogDir           string           `toml:"log_dir"`
	ImportantFolders []string         `toml:"important_folders"` // relative to base_path
	Discs            DiscsConfig      `toml:"discs"`
	Transfer         TransferConfig   `toml:"transfer"`
	Skip             SkipConfig       `toml:"skip"`
	Metadata         MetadataConfig   `toml:"metadata"`
	Cache            CacheConfig      `toml:"cache"`
	Extras           ExtrasConfig     `toml:"extras"`
	Filesystem       FilesystemConfig `toml:"filesystem"`
}

// DiscsConfig holds the usable capacity of one disc per archive set.
type DiscsConfig struct {
	ImportantMB int64 `toml:"important_mb"`
	RegularMB   int64 `toml:"regular_mb"`
}

// TransferConfig controls how files reach the destination.
type TransferConfig struct {
	CopyOnly       bool `toml:"copy_only"`
	DryRun         bool `toml:"dry_run"`
	Workers        int  `toml:"workers"` // 0 means one per CPU
	MkdirAttempts  int  `toml:"mkdir_attempts"`
	MkdirBackoffMS int  `toml:"mkdir_backoff_ms"`
}

// SkipConfig turns off processing of an archive set.
type SkipConfig struct {
	Important bool `toml:"important"`
	Regular   bool `toml:"regular"`
}

// MetadataConfig selects the metadata entry layout.
type MetadataConfig struct {
	SchemaVersion int `toml:"schema_version"`
}

// CacheConfig represents configuration for the discovery cache.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CacheConfig struct {
	Type string `toml:"type"`           // "json", "sqlite", "memory" or "none"
	Path string `toml:"path,omitempty"` // defaults depend on Type
}

// ExtrasConfig locates the payloads copied onto every disc. Sources may be
// a local directory, a local zip, an http(s) URL or an s3://bucket/key URL.
type ExtrasConfig struct {
	BinariesPath string   `toml:"binaries_path"` // defaults to the running executable's directory
	SourceURL    string   `toml:"source_url"`
	HTMLURL      string   `toml:"html_url"`
	S3           S3Config `toml:"s3"`
}

// S3Config holds credentials for s3:// extras sources. Empty credentials
// fall back to the default AWS chain.
type S3Config struct {
	Region          string `toml:"region,omitempty"`
	AccessKeyID     string `toml:"access_key_id,omitempty"`
	SecretAccessKey string `toml:"secret_access_key,omitempty"`
	Endpoint        string `toml:"endpoint,omitempty"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// DefaultImportantFolder is where a Google Photos export keeps the photos
// chosen for the important set.
const DefaultImportantFolder = "Google Photos/Photos for Extra Archiving"

// Default returns a Config with every default filled in and no paths set.
func Default() *Config {
	return &Config{
		ImportantFolders: []string{DefaultImportantFolder},
		Discs:            DiscsConfig{ImportantMB: 4000, RegularMB: 4000},
		Transfer:         TransferConfig{MkdirAttempts: 20, MkdirBackoffMS: 100},
		Metadata:         MetadataConfig{SchemaVersion: 2},
		Cache:            CacheConfig{Type: "json"},
	}
}

// NewConfig creates a new Config for the given base and destination paths,
// logging under homeDir.
func NewConfig(basePath, destinationPath, homeDir string) *Config {
	cfg := Default()
	cfg.BasePath = basePath
	cfg.DestinationPath = destinationPath
	cfg.LogDir = filepath.Join(homeDir, "log")
	return cfg
}

// ImportantCapacity is the important set's disc capacity in bytes.
func (c *Config) ImportantCapacity() int64 { return c.Discs.ImportantMB * Megabyte }

// RegularCapacity is the regular set's disc capacity in bytes.
func (c *Config) RegularCapacity() int64 { return c.Discs.RegularMB * Megabyte }

// ImportantPaths resolves ImportantFolders against base, normally the
// absolute form of BasePath.
func (c *Config) ImportantPaths(base string) []string {
	paths := make([]string, 0, len(c.ImportantFolders))
	for _, f := range c.ImportantFolders {
		if filepath.IsAbs(f) {
			paths = append(paths, filepath.Clean(f))
		} else {
			paths = append(paths, filepath.Join(base, f))
		}
	}
	return paths
}

// ValidationError lists every problem found in a Config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks c for missing or out-of-range values.
func (c *Config) Validate() error {
	var problems []string
	if c.BasePath == "" {
		problems = append(problems, "base_path is required")
	}
	if c.DestinationPath == "" {
		problems = append(problems, "destination_path is required")
	}
	if c.Discs.ImportantMB <= 0 {
		problems = append(problems, fmt.Sprintf("discs.important_mb must be positive, got %d", c.Discs.ImportantMB))
	}
	if c.Discs.RegularMB <= 0 {
		problems = append(problems, fmt.Sprintf("discs.regular_mb must be positive, got %d", c.Discs.RegularMB))
	}
	if c.Transfer.Workers < 0 {
		problems = append(problems, fmt.Sprintf("transfer.workers must not be negative, got %d", c.Transfer.Workers))
	}
	if c.Transfer.MkdirAttempts <= 0 {
		problems = append(problems, fmt.Sprintf("transfer.mkdir_attempts must be positive, got %d", c.Transfer.MkdirAttempts))
	}
	if c.Transfer.MkdirBackoffMS < 0 {
		problems = append(problems, fmt.Sprintf("transfer.mkdir_backoff_ms must not be negative, got %d", c.Transfer.MkdirBackoffMS))
	}
	if v := c.Metadata.SchemaVersion; v != 1 && v != 2 {
		problems = append(problems, fmt.Sprintf("metadata.schema_version must be 1 or 2, got %d", v))
	}
	switch c.Cache.Type {
	case "json", "sqlite", "memory", "none":
	default:
		problems = append(problems, fmt.Sprintf("unknown cache type: %q", c.Cache.Type))
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Keys absent from the
// input keep their defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
