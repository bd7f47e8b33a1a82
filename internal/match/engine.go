package match

import (
	"context"
	"fmt"
	"sync"

	clog "github.com/charmbracelet/log"
	"github.com/jmcampanini/github-watcher/internal/diff"
	"github.com/jmcampanini/github-watcher/internal/ledger"
	"github.com/jmcampanini/github-watcher/internal/notify"
	"github.com/jmcampanini/github-watcher/internal/watch"
)

// Engine applies the match rules to patched files and raises at most one
// alert per pull request link.
type Engine struct {
	ledger   ledger.Ledger
	log      *clog.Logger
	notifier notify.Notifier
	silent   bool

	mu        sync.Mutex
	regexHits map[*watch.WatchedRepo]regexHit // last diff seen per repo
}

type regexHit struct {
	blob string
	hit  bool
}

// NewEngine returns an Engine that records alerts in l and delivers them
// through n. silent is passed on to every alert.
func NewEngine(l ledger.Ledger, n notify.Notifier, silent bool) *Engine {
	return &Engine{
		ledger:    l,
		log:       clog.Default().WithPrefix("match"),
		notifier:  n,
		silent:    silent,
		regexHits: make(map[*watch.WatchedRepo]regexHit),
	}
}

// AlertIfWatchedChanges checks one side of a patched file against repo and
// alerts when it matches. It returns true only when this call raised the
// alert. The checks run in order and stop at the first hit:
//
//  1. the link is already in the ledger: no alert
//  2. the file is under a watched directory, or diffBlob matches a regex
//  3. the file is watched and one of its hunks touches a watched range
//     (a watched file without ranges matches any hunk)
func (e *Engine) AlertIfWatchedChanges(ctx context.Context, repo *watch.WatchedRepo, file diff.PatchedFile, prLink, diffBlob string, side diff.Side) (bool, error) {
	path := NormalizePath(file.Path(side))

	alerted, err := e.ledger.AlreadyAlerted(prLink)
	if err != nil {
		return false, fmt.Errorf("failed to check ledger for %s: %w", prLink, err)
	}
	if alerted {
		return false, nil
	}

	if IsWatchedDirectory(repo, path) || e.containsWatchedRegex(repo, diffBlob) {
		return true, e.raise(ctx, notify.Alert{File: path, Link: prLink})
	}

	watched := IsWatchedFile(repo, path)
	if watched == nil {
		return false, nil
	}
	for _, hunk := range file.Hunks {
		start, length := hunk.Span(side)
		end := start + length
		if len(watched.Ranges) == 0 {
			if end < start {
				return false, fmt.Errorf("%s %s: %w", path, side, ErrOutOfOrderRange)
			}
			return true, e.raise(ctx, notify.Alert{File: path, Link: prLink})
		}
		hit, err := AreWatchedLines(watched, start, end)
		if err != nil {
			return false, fmt.Errorf("%s %s: %w", path, side, err)
		}
		if hit {
			return true, e.raise(ctx, notify.Alert{File: path, Start: start, End: end, HasRange: true, Link: prLink})
		}
	}
	return false, nil
}

// containsWatchedRegex is ContainsWatchedRegex, remembered for the last
// diff of each repo. Every file and side of a pull request shares one diff.
func (e *Engine) containsWatchedRegex(repo *watch.WatchedRepo, blob string) bool {
	if repo == nil || len(repo.Regexes) == 0 {
		return false
	}
	e.mu.Lock()
	last, ok := e.regexHits[repo]
	e.mu.Unlock()
	if ok && last.blob == blob {
		return last.hit
	}

	hit := ContainsWatchedRegex(repo, blob)
	e.mu.Lock()
	e.regexHits[repo] = regexHit{blob: blob, hit: hit}
	e.mu.Unlock()
	return hit
}

// raise delivers the alert and records the link. A delivery failure is
// logged; the link is recorded regardless.
func (e *Engine) raise(ctx context.Context, alert notify.Alert) error {
	alert.Silent = e.silent
	e.log.Debug("Raising alert", "file", alert.File, "range", alert.RangeText(), "link", alert.Link)
	if err := e.notifier.Notify(ctx, alert); err != nil {
		e.log.Warn("Alert delivery failed", "link", alert.Link, "error", err)
	}
	if err := e.ledger.MarkAsAlerted(alert.Link); err != nil {
		return fmt.Errorf("failed to record alert for %s: %w", alert.Link, err)
	}
	return nil
}
