// Package paths resolves configuration and database locations for the
// patchwork CLI.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultDBName is the database file created under the default data
// directory when nothing else is configured.
const DefaultDBName = "patchwork.db"

// DefaultDataDirName is the CWD-relative default data directory.
const DefaultDataDirName = ".patchwork"

// Environment variable overrides.
const (
	EnvConfigDir = "PATCHWORK_CONFIG_DIR"
	EnvDB        = "PATCHWORK_DB"
)

// platformDir holds platform-detection functions that can be overridden in
// tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration
// directory.
//
// Linux:   $XDG_CONFIG_HOME/patchwork (fallback ~/.config/patchwork)
// macOS:   ~/Library/Application Support/patchwork
// Windows: %APPDATA%/patchwork
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "patchwork"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "patchwork"), nil
	default:
		// macOS and Windows use os.UserConfigDir which returns
		// ~/Library/Application Support on macOS and %APPDATA% on Windows.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "patchwork"), nil
	}
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > PATCHWORK_CONFIG_DIR env > platform default.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDB returns the database path following the precedence chain:
// flag > config file value > PATCHWORK_DB env >
// $(CWD)/.patchwork/patchwork.db.
func ResolveDB(flag, configValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvDB); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName, DefaultDBName), nil
}
