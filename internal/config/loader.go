package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	clog "github.com/charmbracelet/log"
)

// LoadResult contains the loaded settings and the files they came from.
type LoadResult struct {
	Config      Config
	SourcePaths []string // paths that were successfully loaded, in order applied
}

// FileSystem abstracts file system operations for testability.
type FileSystem interface {
	// Exists returns true if the path exists and is a file (not a directory).
	Exists(path string) bool
}

// OSFileSystem implements FileSystem using the real OS.
type OSFileSystem struct{}

func (OSFileSystem) Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Loader overlays settings files on the defaults.
type Loader struct {
	fs      FileSystem
	homeDir string
}

// NewLoader creates a Loader. homeDir is substituted for a leading "~" in
// path settings; an empty homeDir leaves them untouched.
func NewLoader(fs FileSystem, homeDir string) *Loader {
	return &Loader{fs: fs, homeDir: homeDir}
}

// NewDefaultLoader creates a Loader on the real OS file system and the
// current user's home directory.
func NewDefaultLoader() *Loader {
	home, _ := os.UserHomeDir()
	return NewLoader(OSFileSystem{}, home)
}

// Load reads and merges all config files in priority order.
// Paths should be ordered from lowest to highest priority. Missing files are
// skipped and unknown keys only warn.
func (l *Loader) Load(paths []string) (LoadResult, error) {
	cfg := DefaultConfig()
	var sourcePaths []string

	for _, path := range paths {
		if !l.fs.Exists(path) {
			continue
		}

		metadata, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return LoadResult{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
			clog.Warn("unknown config keys", "path", path, "keys", undecoded)
		}

		sourcePaths = append(sourcePaths, path)
	}

	if err := cfg.Validate(); err != nil {
		return LoadResult{}, fmt.Errorf("invalid config: %w", err)
	}

	if l.homeDir != "" {
		cfg.GitHub.TokenFile = ExpandHome(cfg.GitHub.TokenFile, l.homeDir)
		cfg.Ledger.Path = ExpandHome(cfg.Ledger.Path, l.homeDir)
		cfg.Watches.Path = ExpandHome(cfg.Watches.Path, l.homeDir)
	}

	return LoadResult{
		Config:      cfg,
		SourcePaths: sourcePaths,
	}, nil
}
