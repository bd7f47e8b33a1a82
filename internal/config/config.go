package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmcampanini/github-watcher/internal/ledger"
)

// Config represents the runtime settings of the watcher. What to watch lives
// in the separate watch file.
type Config struct {
	GitHub  GitHubConfig  `toml:"github"`
	Ledger  LedgerConfig  `toml:"ledger"`
	Notify  NotifyConfig  `toml:"notify"`
	Scan    ScanConfig    `toml:"scan"`
	Watches WatchesConfig `toml:"watches"`
}

// Validate checks that all config values are valid.
// Returns an error describing the first invalid value found.
func (c Config) Validate() error {
	if c.GitHub.Timeout < 0 {
		return errors.New("github.timeout cannot be negative")
	}
	if c.GitHub.RequestsPerSecond < 0 {
		return errors.New("github.requests_per_second cannot be negative")
	}
	if c.Ledger.Path == "" {
		return errors.New("ledger.path cannot be empty")
	}
	if !ledger.MatchMode(c.Ledger.Match).IsValid() {
		return fmt.Errorf("ledger.match must be %q or %q, got %q", ledger.MatchExact, ledger.MatchSubstring, c.Ledger.Match)
	}
	if c.Scan.Interval < time.Second {
		return errors.New("scan.interval must be at least 1s")
	}
	if c.Scan.Concurrency < 1 {
		return errors.New("scan.concurrency must be at least 1")
	}
	if c.Watches.Path == "" {
		return errors.New("watches.path cannot be empty")
	}
	return nil
}

// GitHubConfig configures API access.
type GitHubConfig struct {
	RequestsPerSecond float64       `toml:"requests_per_second"` // 0 = unlimited
	Timeout           time.Duration `toml:"timeout"`             // per request, e.g. "30s"
	TokenFile         string        `toml:"token_file"`          // used for users without a token
}

// LedgerConfig configures the alert ledger.
type LedgerConfig struct {
	Match string `toml:"match"` // "exact" or "substring"
	Path  string `toml:"path"`
	// PruneClosed drops links of pull requests that were not open in the
	// last complete scan.
	PruneClosed bool `toml:"prune_closed"`
}

// NotifyConfig configures alert delivery.
type NotifyConfig struct {
	Desktop bool   `toml:"desktop"`
	Silent  bool   `toml:"silent"` // no sound; notifications still show
	Title   string `toml:"title"`
}

// ScanConfig configures the polling loop.
type ScanConfig struct {
	Concurrency int           `toml:"concurrency"` // repositories scanned at once
	Interval    time.Duration `toml:"interval"`
}

// WatchesConfig locates the watch file.
type WatchesConfig struct {
	Path string `toml:"path"`
}

// ExpandHome replaces a leading "~" in path with homeDir.
func ExpandHome(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
