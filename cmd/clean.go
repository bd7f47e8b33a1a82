package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jmcampanini/github-watcher/internal/clean"
	"github.com/spf13/cobra"
)

var (
	cleanCloseFlag     bool
	cleanCommentFlag   string
	cleanDeleteFlag    bool
	cleanDryRunFlag    bool
	cleanOlderThanFlag string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Close, delete, or comment on stale branches and pull requests",
	Long: `Act on branches and open pull requests of every watched repository that
were last updated before --older-than.

--delete removes stale branches, --close closes stale pull requests, and
--comment posts a message on both (on a branch's head commit). Protected
branches are never touched. Comments are posted before closing or deleting.

Nothing changes unless --dry-run=false is passed.

Examples:
  github-watcher clean --older-than 2024-01-01 --delete
  github-watcher clean --older-than 2024-01-01 --close --comment "Closing stale PR" --dry-run=false`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().StringVar(&cleanOlderThanFlag, "older-than", "", "Cutoff date YYYY-MM-DD (required)")
	cleanCmd.Flags().BoolVar(&cleanCloseFlag, "close", false, "Close stale pull requests")
	cleanCmd.Flags().BoolVar(&cleanDeleteFlag, "delete", false, "Delete stale branches")
	cleanCmd.Flags().StringVar(&cleanCommentFlag, "comment", "", "Comment to leave on stale branches and pull requests")
	cleanCmd.Flags().BoolVar(&cleanDryRunFlag, "dry-run", true, "Only print what would be done")
	_ = cleanCmd.MarkFlagRequired("older-than")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, _ []string) error {
	opts, err := cleanOptions(cleanOlderThanFlag, cleanCloseFlag, cleanDeleteFlag, cleanCommentFlag, cleanDryRunFlag)
	if err != nil {
		return err
	}

	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	conf, err := loadWatches(cfg)
	if err != nil {
		return err
	}

	actions, cleanErr := clean.New(newClientPool(cfg), opts).Clean(contextOrBackground(cmd.Context()), conf)
	if err := outputActionTable(cmd.OutOrStdout(), actions); err != nil {
		return err
	}
	return cleanErr
}

func cleanOptions(olderThan string, closePRs, deleteBranches bool, comment string, dryRun bool) (clean.Options, error) {
	cutoff, err := clean.ParseDate(olderThan)
	if err != nil {
		return clean.Options{}, err
	}
	if !closePRs && !deleteBranches && comment == "" {
		return clean.Options{}, errors.New("nothing to do: pass --close, --delete, or --comment")
	}
	return clean.Options{
		OlderThan: cutoff,
		Close:     closePRs,
		Delete:    deleteBranches,
		Comment:   comment,
		DryRun:    dryRun,
	}, nil
}

// outputActionTable renders one row per action taken or planned.
func outputActionTable(w io.Writer, actions []clean.Action) error {
	if len(actions) == 0 {
		_, err := fmt.Fprintln(w, "Nothing is stale.")
		return err
	}

	rows := make([][]string, len(actions))
	for i, a := range actions {
		status := "planned"
		if a.Applied {
			status = "done"
		}
		rows[i] = []string{
			string(a.Entity.Kind()),
			truncate(a.Entity.Name(), 60),
			a.Verb,
			status,
			humanize.Time(a.Entity.LastUpdated()),
		}
	}

	t := newTable([]string{"Kind", "Name", "Action", "Status", "Updated"}, rows)
	_, err := fmt.Fprintln(w, t)
	return err
}
