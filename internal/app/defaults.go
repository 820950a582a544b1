package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - ARCHIVER_CONFIG_PATH: config file location (default: ~/.config/archiver.toml)
//   - ARCHIVER_HOME: directory for logs and the sqlite cache (default: ~/.local/share/archiver)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	homeDir, err := getHomeDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"home_dir":    homeDir,
		"log_dir":     filepath.Join(homeDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking ARCHIVER_CONFIG_PATH first,
// then falling back to the default ~/.config/archiver.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("ARCHIVER_CONFIG_PATH"); path != "" {
		return path, nil
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(userHome, ".config", "archiver.toml"), nil
}

// getHomeDir returns the archiver data directory, checking ARCHIVER_HOME first,
// then falling back to the XDG default ~/.local/share/archiver.
func getHomeDir() (string, error) {
	if path := os.Getenv("ARCHIVER_HOME"); path != "" {
		return path, nil
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(userHome, ".local", "share", "archiver"), nil
}
