// Package xdg provides XDG Base Directory paths for gatekeep.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "gatekeep"

// ConfigDir returns the XDG config directory for gatekeep.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the path of the default config file if it
// exists, or the empty string when there is none.
func DefaultConfigFile() string {
	path := filepath.Join(ConfigDir(), "gatekeep.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
