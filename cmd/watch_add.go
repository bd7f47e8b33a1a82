package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/jmcampanini/github-watcher/internal/git"
	"github.com/jmcampanini/github-watcher/internal/watch"
	"github.com/spf13/cobra"
)

// gitTimeout bounds each git command used to detect the remote.
const gitTimeout = 5 * time.Second

var (
	watchAddBaseURL string
	watchAddPath    string
	watchAddRanges  []string
	watchAddRegexes []string
	watchAddRepo    string
	watchAddUser    string
	watchAddWrite   bool
)

var watchAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a path, line ranges, or regexes to the watch file",
	Long: `Merge a watch into the watch file and print the result.

A --path ending in "/" watches every file under that directory. Any other
path is a file; repeat --range start:end to limit it to lines, or leave it
out to watch the whole file. --regex is matched against every line of a pull
request's diff.

Ranges are appended to what is already watched for that path, never replaced.

--user and --repo default to the owner and name of the current checkout's
GitHub remote. Nothing is written without --write.

Examples:
  github-watcher watch add --path internal/auth/
  github-watcher watch add --path go.mod --range 1:20 --write
  github-watcher watch add --user octo --repo widgets --regex 'TODO\(security\)'`,
	Args: cobra.NoArgs,
	RunE: runWatchAdd,
}

func init() {
	watchAddCmd.Flags().StringVar(&watchAddUser, "user", "", "Repository owner (default: from git remote)")
	watchAddCmd.Flags().StringVar(&watchAddRepo, "repo", "", "Repository name (default: from git remote)")
	watchAddCmd.Flags().StringVar(&watchAddPath, "path", "", "File, or directory ending in /, relative to the repository root")
	watchAddCmd.Flags().StringArrayVar(&watchAddRanges, "range", nil, "Line range start:end of --path (repeatable)")
	watchAddCmd.Flags().StringArrayVar(&watchAddRegexes, "regex", nil, "Regex matched against diff lines (repeatable)")
	watchAddCmd.Flags().StringVar(&watchAddBaseURL, "base-url", "", "API base URL for GitHub Enterprise")
	watchAddCmd.Flags().BoolVar(&watchAddWrite, "write", false, "Write the merged watch file")
	watchCmd.AddCommand(watchAddCmd)
}

func runWatchAdd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	user, repo, baseURL := watchAddUser, watchAddRepo, watchAddBaseURL
	if user == "" || repo == "" {
		remote, err := detectRemote()
		if err != nil {
			return err
		}
		if user == "" {
			user = remote.Owner
		}
		if repo == "" {
			repo = remote.Repo
		}
		if baseURL == "" {
			baseURL = remote.APIBaseURL()
		}
	}

	incoming, err := buildWatchedUser(user, repo, baseURL, watchAddPath, watchAddRanges, watchAddRegexes)
	if err != nil {
		return err
	}

	conf, err := watch.LoadOrEmpty(cfg.Watches.Path)
	if err != nil {
		return err
	}
	conf.MergeUser(incoming)
	if err := conf.Validate(); err != nil {
		return err
	}

	data, err := watch.Marshal(conf)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(data); err != nil {
		return err
	}

	if !watchAddWrite {
		clog.Info("Dry run; pass --write to save", "path", cfg.Watches.Path)
		return nil
	}
	if err := watch.Save(cfg.Watches.Path, conf); err != nil {
		return err
	}
	clog.Info("Saved watch file", "path", cfg.Watches.Path)
	return nil
}

func detectRemote() (git.Remote, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return git.Remote{}, fmt.Errorf("failed to get current directory: %w", err)
	}
	remote, ok, err := git.DetectRemote(git.New(cwd, gitTimeout))
	if err != nil {
		return git.Remote{}, fmt.Errorf("git error: %w", err)
	}
	if !ok {
		return git.Remote{}, errors.New("--user and --repo are required outside a GitHub checkout")
	}
	return remote, nil
}

// buildWatchedUser turns the add flags into a single-repo WatchedUser.
func buildWatchedUser(user, repo, baseURL, path string, ranges, regexes []string) (watch.WatchedUser, error) {
	if user == "" || repo == "" {
		return watch.WatchedUser{}, errors.New("user and repo are required")
	}
	if path == "" && len(regexes) == 0 {
		return watch.WatchedUser{}, errors.New("nothing to watch: pass --path or --regex")
	}
	if path == "" && len(ranges) > 0 {
		return watch.WatchedUser{}, errors.New("--range requires --path")
	}

	r := watch.WatchedRepo{Name: repo, Regexes: regexes}
	if path != "" {
		p := watch.WatchedPath{Path: path}
		if p.IsDirectory() && len(ranges) > 0 {
			return watch.WatchedUser{}, fmt.Errorf("--range cannot be used with directory %q", path)
		}
		for _, s := range ranges {
			lr, err := parseRange(s)
			if err != nil {
				return watch.WatchedUser{}, err
			}
			p.Ranges = append(p.Ranges, lr)
		}
		r.Paths = []watch.WatchedPath{p}
	}

	if baseURL == "" {
		baseURL = watch.DefaultBaseURL
	}
	return watch.WatchedUser{
		Name:    user,
		BaseURL: baseURL,
		Repos:   []watch.WatchedRepo{r},
	}, nil
}
