package config

import (
	"os"
	"path/filepath"
)

const configFileName = "watcher.toml"

// ConfigPaths returns ordered list of config file paths to check.
// Paths are ordered from lowest to highest priority, so that when decoded
// sequentially, each subsequent file overrides values from previous files.
//
// Order (lowest to highest priority):
//  1. File in XDG config directory (~/.config/github-watcher/watcher.toml)
//  2. Files walking down from the home directory toward cwd
//  3. File in current working directory
//
// Ancestors are only walked when cwd is inside homeDir.
func ConfigPaths(cwd, homeDir string) []string {
	var paths []string
	seen := make(map[string]bool)

	addPath := func(dir string) {
		if dir == "" {
			return
		}
		path := filepath.Join(dir, configFileName)
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	if xdgConfigDir, err := os.UserConfigDir(); err == nil {
		addPath(filepath.Join(xdgConfigDir, "github-watcher"))
	}

	if cwd != "" && homeDir != "" && isWithin(cwd, homeDir) {
		var ancestors []string
		current := filepath.Dir(cwd)
		for len(current) >= len(homeDir) {
			ancestors = append(ancestors, current)
			if current == homeDir {
				break
			}
			parent := filepath.Dir(current)
			if parent == current {
				break // reached filesystem root
			}
			current = parent
		}

		// Add in reverse order: home first (lowest priority), closest to cwd last
		for i := len(ancestors) - 1; i >= 0; i-- {
			addPath(ancestors[i])
		}
	}

	addPath(cwd)

	return paths
}

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && (len(rel) < 3 || rel[:3] != ".."+string(filepath.Separator))
}
