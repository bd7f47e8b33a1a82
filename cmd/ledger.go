package cmd

import (
	"context"
	"fmt"

	"github.com/jmcampanini/github-watcher/internal/github"
	"github.com/jmcampanini/github-watcher/internal/watch"
	"github.com/spf13/cobra"
)

var ledgerPruneAllFlag bool

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and prune the alert ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every pull request link that has been alerted on",
	Args:  cobra.NoArgs,
	RunE:  runLedgerList,
}

var ledgerPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop ledger entries for pull requests that are no longer open",
	Long: `Drop ledger entries for pull requests that are no longer open in any
watched repository. With --all the ledger is emptied, so every open pull
request can alert again.`,
	Args: cobra.NoArgs,
	RunE: runLedgerPrune,
}

func init() {
	ledgerPruneCmd.Flags().BoolVar(&ledgerPruneAllFlag, "all", false, "Drop every entry")
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerPruneCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func runLedgerList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	links, err := newLedger(cfg).Links()
	if err != nil {
		return err
	}
	for _, link := range links {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), link); err != nil {
			return err
		}
	}
	return nil
}

func runLedgerPrune(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	keep := func(string) bool { return false }
	if !ledgerPruneAllFlag {
		conf, err := loadWatches(cfg)
		if err != nil {
			return err
		}
		open, err := openLinks(contextOrBackground(cmd.Context()), newClientPool(cfg), conf)
		if err != nil {
			return err
		}
		keep = func(link string) bool { return open[link] }
	}

	removed, err := newLedger(cfg).Prune(keep)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d ledger entries\n", removed)
	return err
}

// openLinks collects the links of every open pull request in conf.
func openLinks(ctx context.Context, clients github.ClientSource, conf *watch.Configuration) (map[string]bool, error) {
	open := make(map[string]bool)
	for _, u := range conf.Users {
		gh, err := clients.For(u.BaseURL, u.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to create client for %s: %w", u.Name, err)
		}
		for _, r := range u.Repos {
			prs, err := gh.ListOpenPullRequests(ctx, u.Name, r.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to list pull requests of %s/%s: %w", u.Name, r.Name, err)
			}
			for _, pr := range prs {
				open[pr.HTMLURL] = true
			}
		}
	}
	return open, nil
}
