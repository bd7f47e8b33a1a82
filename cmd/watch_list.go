package cmd

import (
	"github.com/jmcampanini/github-watcher/internal/watch"
	"github.com/spf13/cobra"
)

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show what is being watched",
	Args:  cobra.NoArgs,
	RunE:  runWatchList,
}

func init() {
	watchCmd.AddCommand(watchListCmd)
}

func runWatchList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	conf, err := watch.LoadOrEmpty(cfg.Watches.Path)
	if err != nil {
		return err
	}
	return outputWatchTable(cmd, conf)
}
