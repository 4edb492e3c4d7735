// Package paths resolves configuration and data directory locations.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// appDirName is the subdirectory appended under every platform base.
const appDirName = "chronicle"

// CWD-relative directory names used when no override is active.
const (
	DefaultConfigDirName = ".chronicle"
	DefaultDataDirName   = ".chronicle-db"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "CHRONICLE_CONFIG_DIR"
	EnvDataDir   = "CHRONICLE_DATA_DIR"
)

// platformDefault resolves a Linux XDG base directory, falling back to the
// home-relative path in fallback when the XDG variable is unset. On every
// other platform it defers to os.UserConfigDir, which maps to
// ~/Library/Application Support on macOS and %APPDATA% on Windows.
func platformDefault(xdgEnv string, fallback ...string) (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appDirName), nil
	}
	if xdg := os.Getenv(xdgEnv); xdg != "" {
		return filepath.Join(xdg, appDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	parts := append([]string{home}, fallback...)
	return filepath.Join(append(parts, appDirName)...), nil
}

// DefaultConfigDir returns the platform-specific default configuration
// directory: $XDG_CONFIG_HOME/chronicle (fallback ~/.config/chronicle) on
// Linux, the os.UserConfigDir equivalent elsewhere.
func DefaultConfigDir() (string, error) {
	return platformDefault("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform-specific default data directory:
// $XDG_DATA_HOME/chronicle (fallback ~/.local/share/chronicle) on Linux, the
// os.UserConfigDir equivalent elsewhere.
func DefaultDataDir() (string, error) {
	return platformDefault("XDG_DATA_HOME", ".local", "share")
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > CHRONICLE_CONFIG_DIR env > DefaultConfigDir().
// Flag and env values are made absolute before returning.
func ResolveConfigDir(flag string) (string, error) {
	for _, override := range []string{flag, os.Getenv(EnvConfigDir)} {
		if override != "" {
			return filepath.Abs(override)
		}
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > configYAMLValue > CHRONICLE_DATA_DIR env > $(CWD)/.chronicle-db.
// Override values are made absolute before returning.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	for _, override := range []string{flag, configYAMLValue, os.Getenv(EnvDataDir)} {
		if override != "" {
			return filepath.Abs(override)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}
