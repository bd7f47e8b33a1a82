// Package match decides whether a pull request's changes overlap a
// repository's watch configuration.
package match

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	clog "github.com/charmbracelet/log"
	"github.com/jmcampanini/github-watcher/internal/watch"
)

// ErrOutOfOrderRange means a changed interval ended before it started. It
// indicates a broken diff, not a configuration problem.
var ErrOutOfOrderRange = errors.New("changed line ranges were out of order")

// NormalizePath strips a leading "a/" or "b/" diff prefix.
func NormalizePath(path string) string {
	if strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		return path[2:]
	}
	return path
}

// IsWatchedFile returns the entry whose path equals path exactly. Directory
// entries never match here.
func IsWatchedFile(repo *watch.WatchedRepo, path string) *watch.WatchedPath {
	if repo == nil || len(repo.Paths) == 0 {
		return nil
	}
	for i := range repo.Paths {
		if repo.Paths[i].Path == path {
			return &repo.Paths[i]
		}
	}
	return nil
}

// IsWatchedDirectory reports whether path lies under a watched directory.
func IsWatchedDirectory(repo *watch.WatchedRepo, path string) bool {
	if repo == nil || len(repo.Paths) == 0 {
		return false
	}
	for _, p := range repo.Paths {
		if p.IsDirectory() && strings.HasPrefix(path, p.Path) {
			return true
		}
	}
	return false
}

// ContainsWatchedRegex reports whether any configured regex is found on any
// physical line of blob. Patterns that fail to compile never match.
func ContainsWatchedRegex(repo *watch.WatchedRepo, blob string) bool {
	if repo == nil || len(repo.Regexes) == 0 {
		return false
	}
	lines := strings.Split(blob, "\n")
	for _, pattern := range repo.Regexes {
		re, err := compile(pattern)
		if err != nil {
			continue
		}
		for _, line := range lines {
			if re.MatchString(strings.TrimSuffix(line, "\r")) {
				return true
			}
		}
	}
	return false
}

var regexCache sync.Map // pattern -> *regexp.Regexp

func compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		clog.Default().WithPrefix("match").Warn("Skipping invalid regex", "pattern", pattern, "error", err)
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

// AreWatchedLines reports whether the changed interval [start, end] touches
// one of path's ranges. It returns false when path has no ranges.
//
// An interval is rejected by a range only when it lies entirely before it,
// or starts after it ends.
func AreWatchedLines(path *watch.WatchedPath, start, end int) (bool, error) {
	if end < start {
		return false, fmt.Errorf("%w: start %d, end %d", ErrOutOfOrderRange, start, end)
	}
	if path == nil || len(path.Ranges) == 0 {
		return false, nil
	}
	for _, watched := range path.Ranges {
		if start < watched.Start && end < watched.Start {
			continue
		}
		if start > watched.End {
			continue
		}
		return true, nil
	}
	return false, nil
}
