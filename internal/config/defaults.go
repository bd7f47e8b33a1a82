package config

import (
	"time"

	"github.com/jmcampanini/github-watcher/internal/ledger"
	"github.com/jmcampanini/github-watcher/internal/notify"
	"github.com/jmcampanini/github-watcher/internal/watch"
)

// DefaultConfig returns sensible defaults for all configuration.
func DefaultConfig() Config {
	return Config{
		GitHub: GitHubConfig{
			RequestsPerSecond: 0,
			Timeout:           30 * time.Second,
			TokenFile:         "~/.github",
		},
		Ledger: LedgerConfig{
			Match:       string(ledger.MatchExact),
			Path:        ledger.DefaultPath,
			PruneClosed: false,
		},
		Notify: NotifyConfig{
			Desktop: true,
			Silent:  false,
			Title:   notify.DefaultTitle,
		},
		Scan: ScanConfig{
			Concurrency: 1,
			Interval:    10 * time.Minute,
		},
		Watches: WatchesConfig{
			Path: "~/" + watch.DefaultFileName,
		},
	}
}
