// Package paths resolves where tripctl keeps its configuration and its
// SQLite data.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the directory name used under the platform config and data
// roots.
const AppName = "tripstate"

// EnvConfigDir overrides the configuration directory. The data directory is
// configured through config.yaml or TRIPSTATE_DATA_DIR, which the config
// loader reads.
const EnvConfigDir = "TRIPSTATE_CONFIG_DIR"

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform configuration directory.
//
//	Linux:   $XDG_CONFIG_HOME/tripstate (fallback ~/.config/tripstate)
//	macOS:   ~/Library/Application Support/tripstate
//	Windows: %APPDATA%/tripstate
func DefaultConfigDir() (string, error) {
	return platformPath("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory.
//
//	Linux:   $XDG_DATA_HOME/tripstate (fallback ~/.local/share/tripstate)
//	macOS:   ~/Library/Application Support/tripstate
//	Windows: %APPDATA%/tripstate
func DefaultDataDir() (string, error) {
	return platformPath("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func platformPath(xdgEnv, homeRel string) (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv(xdgEnv); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, AppName), nil
}

// ResolveConfigDir picks the configuration directory: flag, then
// TRIPSTATE_CONFIG_DIR, then the platform default. Explicit values are made
// absolute.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir picks the data directory: flag, then the configured value
// (config.yaml or environment), then the platform default.
func ResolveDataDir(flag, configured string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configured != "" {
		return filepath.Abs(configured)
	}
	return DefaultDataDir()
}
