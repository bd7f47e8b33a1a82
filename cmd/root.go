package cmd

import (
	"errors"
	"fmt"
	"os"

	clog "github.com/charmbracelet/log"
	"github.com/jmcampanini/github-watcher/internal/config"
	"github.com/jmcampanini/github-watcher/internal/github"
	"github.com/jmcampanini/github-watcher/internal/ledger"
	"github.com/jmcampanini/github-watcher/internal/watch"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "n/a"

var (
	ledgerFlag  string
	silentFlag  bool
	verboseFlag bool
	watchesFlag string
)

var rootCmd = &cobra.Command{
	Use:   "github-watcher",
	Short: "Get notified when pull requests touch code you care about",
	Long: `github-watcher polls open pull requests of the repositories you watch and
alerts once per pull request when its diff touches a watched directory, file,
line range, or matches a watched regex.

Watches live in a YAML file (~/.github-watcher.yml by default). Runtime
settings are read from watcher.toml files; see "github-watcher config".`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if verboseFlag {
			clog.SetLevel(clog.DebugLevel)
		}
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&silentFlag, "silent", false, "Suppress alert sounds (notifications still show)")
	rootCmd.PersistentFlags().StringVar(&watchesFlag, "watches", "", "Path to the watch file (overrides watches.path)")
	rootCmd.PersistentFlags().StringVar(&ledgerFlag, "ledger", "", "Path to the alert ledger (overrides ledger.path)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadSettings merges watcher.toml files over the defaults and applies the
// persistent flag overrides.
func loadSettings() (config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get current directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get user home directory: %w", err)
	}

	loadResult, err := config.NewLoader(config.OSFileSystem{}, homeDir).Load(config.ConfigPaths(cwd, homeDir))
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	clog.Debug("Loaded settings", "sources", loadResult.SourcePaths)

	cfg := loadResult.Config
	applyFlagOverrides(&cfg, homeDir)
	return cfg, nil
}

func applyFlagOverrides(cfg *config.Config, homeDir string) {
	if watchesFlag != "" {
		cfg.Watches.Path = config.ExpandHome(watchesFlag, homeDir)
	}
	if ledgerFlag != "" {
		cfg.Ledger.Path = config.ExpandHome(ledgerFlag, homeDir)
	}
	if silentFlag {
		cfg.Notify.Silent = true
	}
}

// loadWatches reads and validates the watch file. Users without a token get
// the one from github.token_file.
func loadWatches(cfg config.Config) (*watch.Configuration, error) {
	conf, err := watch.Load(cfg.Watches.Path)
	if err != nil {
		var notFound *watch.ConfigNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w; add one with \"github-watcher watch add --write\"", err)
		}
		return nil, err
	}

	if conf.MissingToken() {
		token, err := watch.LoadToken(cfg.GitHub.TokenFile)
		if err != nil {
			clog.Warn("Some users have no token and the token file is unreadable; requests will be unauthenticated", "error", err)
		} else {
			conf.FillTokens(token)
		}
	}

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid watch file %s: %w", cfg.Watches.Path, err)
	}
	conf.Silent = cfg.Notify.Silent
	conf.Verbose = verboseFlag
	return conf, nil
}

func newLedger(cfg config.Config) *ledger.File {
	return ledger.NewFile(cfg.Ledger.Path, ledger.MatchMode(cfg.Ledger.Match))
}

func newClientPool(cfg config.Config) *github.Pool {
	return github.NewPool(github.Options{
		Timeout:           cfg.GitHub.Timeout,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
	})
}
