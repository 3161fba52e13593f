package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// defaultConfigPaths returns the OS-specific search path for config.yaml
// when no explicit --config flag is given.
func defaultConfigPaths() []string {
	var paths []string

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}

	switch runtime.GOOS {
	case "windows":
		if homeDir != "" {
			paths = append(paths, filepath.Join(homeDir, "AppData", "Roaming", "camsync"))
		}
	default:
		if homeDir != "" {
			paths = append(paths, filepath.Join(homeDir, ".config", "camsync"))
		}
		paths = append(paths, "/etc/camsync")
	}

	paths = append(paths, ".")
	return paths
}
