package cmd

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	clog "github.com/charmbracelet/log"
	"github.com/jmcampanini/github-watcher/internal/config"
	"github.com/jmcampanini/github-watcher/internal/match"
	"github.com/jmcampanini/github-watcher/internal/notify"
	"github.com/jmcampanini/github-watcher/internal/scan"
	"github.com/jmcampanini/github-watcher/internal/watch"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch pull requests until interrupted",
	Long: `Scan every watched repository, then repeat after scan.interval (10m by
default) until interrupted with Ctrl-C or SIGTERM.

A failed scan is logged and retried on the next interval.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	conf, err := loadWatches(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clog.Info("Watching", "users", len(conf.Users), "interval", cfg.Scan.Interval, "ledger", cfg.Ledger.Path)
	return newScanner(cfg, conf).Run(ctx, conf, cfg.Scan.Interval)
}

// newScanner wires the ledger, notifiers, and GitHub clients into a Scanner.
func newScanner(cfg config.Config, conf *watch.Configuration) *scan.Scanner {
	l := newLedger(cfg)
	notifier := notify.ForPlatform(runtime.GOOS, cfg.Notify.Desktop, cfg.Notify.Title)
	opts := []scan.Option{scan.WithConcurrency(cfg.Scan.Concurrency)}
	if cfg.Ledger.PruneClosed {
		opts = append(opts, scan.WithPruner(l))
	}
	return scan.New(newClientPool(cfg), match.NewEngine(l, notifier, conf.Silent), opts...)
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
