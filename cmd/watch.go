package cmd

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jmcampanini/github-watcher/internal/watch"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage the watch file",
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// parseRange parses "start:end". Either bound may be empty or "inf" for an
// open end, so ":10" is (-inf, 10) and "100:" is (100, inf).
func parseRange(s string) (watch.LineRange, error) {
	startText, endText, ok := strings.Cut(s, ":")
	if !ok {
		return watch.LineRange{}, fmt.Errorf("invalid range %q, expected start:end", s)
	}
	start, err := parseBound(startText, math.MinInt)
	if err != nil {
		return watch.LineRange{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	end, err := parseBound(endText, math.MaxInt)
	if err != nil {
		return watch.LineRange{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	if end < start {
		return watch.LineRange{}, fmt.Errorf("invalid range %q: end is before start", s)
	}
	return watch.NewLineRange(start, end), nil
}

func parseBound(s string, open int) (int, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "inf", "-inf":
		return open, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bound %q is not a line number", s)
	}
	return n, nil
}

// watchRows flattens the configuration into one row per path or regex.
func watchRows(conf *watch.Configuration) [][]string {
	var rows [][]string
	for _, u := range conf.Users {
		for _, r := range u.Repos {
			for _, p := range r.Paths {
				rows = append(rows, []string{u.Name, r.Name, p.Path, describeLines(p)})
			}
			for _, re := range r.Regexes {
				rows = append(rows, []string{u.Name, r.Name, "/" + re + "/", "regex"})
			}
		}
	}
	return rows
}

func describeLines(p watch.WatchedPath) string {
	if p.IsDirectory() {
		return "all files"
	}
	if len(p.Ranges) == 0 {
		return "all lines"
	}
	parts := make([]string, len(p.Ranges))
	for i, r := range p.Ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, " ")
}

// outputWatchTable renders the watches as a table.
func outputWatchTable(cmd *cobra.Command, conf *watch.Configuration) error {
	rows := watchRows(conf)
	if len(rows) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "Nothing is being watched.")
		return err
	}

	t := newTable([]string{"User", "Repo", "Watching", "Lines"}, rows)
	_, err := fmt.Fprintln(cmd.OutOrStdout(), t)
	return err
}
