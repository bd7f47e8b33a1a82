package cmd

import (
	"fmt"
	"io"

	"github.com/jmcampanini/github-watcher/internal/scan"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single scan and exit",
	Long: `Scan every watched repository once, alert on matches, and print a summary.

Exits non-zero if GitHub could not be reached. Pull requests with a broken
diff are reported as failed and do not stop the scan.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	conf, err := loadWatches(cfg)
	if err != nil {
		return err
	}

	res, err := newScanner(cfg, conf).FindChanges(contextOrBackground(cmd.Context()), conf)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return writeSummary(cmd.OutOrStdout(), res)
}

func writeSummary(w io.Writer, res scan.Result) error {
	_, err := fmt.Fprintf(w, "Scanned %d repos, %d pull requests: %d new alerts, %d skipped, %d failed\n",
		res.Repos, res.PullRequests, res.Alerts, res.Skipped, res.Failed)
	return err
}
