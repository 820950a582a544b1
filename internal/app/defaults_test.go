package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("ARCHIVER_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("ARCHIVER_HOME", "/custom/archiver")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/config.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/config.toml")
		}
		if defaults["home_dir"] != "/custom/archiver" {
			t.Errorf("home_dir = %q, want %q", defaults["home_dir"], "/custom/archiver")
		}
		if defaults["log_dir"] != "/custom/archiver/log" {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], "/custom/archiver/log")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("ARCHIVER_CONFIG_PATH", "")
		t.Setenv("ARCHIVER_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		userHome, _ := os.UserHomeDir()

		wantConfig := filepath.Join(userHome, ".config", "archiver.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantHome := filepath.Join(userHome, ".local", "share", "archiver")
		if defaults["home_dir"] != wantHome {
			t.Errorf("home_dir = %q, want %q", defaults["home_dir"], wantHome)
		}

		wantLog := filepath.Join(wantHome, "log")
		if defaults["log_dir"] != wantLog {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], wantLog)
		}
	})
}
