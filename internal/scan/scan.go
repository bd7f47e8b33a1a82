// Package scan walks every configured repository's open pull requests and
// runs the match engine over their diffs.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/jmcampanini/github-watcher/internal/diff"
	"github.com/jmcampanini/github-watcher/internal/github"
	"github.com/jmcampanini/github-watcher/internal/ledger"
	"github.com/jmcampanini/github-watcher/internal/match"
	"github.com/jmcampanini/github-watcher/internal/watch"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval is the pause between scan passes.
const DefaultInterval = 10 * time.Minute

// Matcher decides and raises alerts for one side of a patched file.
type Matcher interface {
	AlertIfWatchedChanges(ctx context.Context, repo *watch.WatchedRepo, file diff.PatchedFile, prLink, diffBlob string, side diff.Side) (bool, error)
}

var _ Matcher = &match.Engine{}

// Result summarizes one scan pass.
type Result struct {
	Repos        int
	PullRequests int
	Alerts       int
	Skipped      int // no inspectable files
	Failed       int // broken diffs
	OpenLinks    []string
}

func (r *Result) add(other Result) {
	r.Repos += other.Repos
	r.PullRequests += other.PullRequests
	r.Alerts += other.Alerts
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.OpenLinks = append(r.OpenLinks, other.OpenLinks...)
}

// Scanner drives scan passes. Construct with New.
type Scanner struct {
	clients     github.ClientSource
	concurrency int
	log         *clog.Logger
	matcher     Matcher
	parse       func(string) ([]diff.PatchedFile, error)
	pruner      ledger.Pruner
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithConcurrency sets how many repositories are scanned at once. Values
// below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		s.concurrency = max(n, 1)
	}
}

// WithPruner drops ledger links of pull requests that are no longer open
// after every complete pass.
func WithPruner(p ledger.Pruner) Option {
	return func(s *Scanner) {
		s.pruner = p
	}
}

func withParser(parse func(string) ([]diff.PatchedFile, error)) Option {
	return func(s *Scanner) {
		s.parse = parse
	}
}

func New(clients github.ClientSource, matcher Matcher, opts ...Option) *Scanner {
	s := &Scanner{
		clients:     clients,
		concurrency: 1,
		log:         clog.Default().WithPrefix("scan"),
		matcher:     matcher,
		parse:       diff.Parse,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type repoJob struct {
	user *watch.WatchedUser
	repo *watch.WatchedRepo
}

// FindChanges runs one pass over every user and repository in conf.
// Repositories may be scanned concurrently; pull requests within a
// repository are always scanned in order. A broken diff fails only its pull
// request. Any GitHub error aborts the pass.
func (s *Scanner) FindChanges(ctx context.Context, conf *watch.Configuration) (Result, error) {
	var jobs []repoJob
	for i := range conf.Users {
		u := &conf.Users[i]
		for j := range u.Repos {
			jobs = append(jobs, repoJob{user: u, repo: &u.Repos[j]})
		}
	}

	var (
		mu    sync.Mutex
		total Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := s.scanRepo(gctx, job.user, job.repo)
			mu.Lock()
			total.add(res)
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}
	if err := ctx.Err(); err != nil {
		return total, err
	}

	if s.pruner != nil {
		s.prune(total.OpenLinks)
	}
	s.log.Info("Scan complete", "repos", total.Repos, "pullRequests", total.PullRequests, "alerts", total.Alerts, "skipped", total.Skipped, "failed", total.Failed)
	return total, nil
}

func (s *Scanner) scanRepo(ctx context.Context, user *watch.WatchedUser, repo *watch.WatchedRepo) (Result, error) {
	log := s.log.With("user", user.Name, "repo", repo.Name)
	res := Result{Repos: 1}

	gh, err := s.clients.For(user.BaseURL, user.Token)
	if err != nil {
		return res, fmt.Errorf("failed to create client for %s: %w", user.Name, err)
	}

	prs, err := gh.ListOpenPullRequests(ctx, user.Name, repo.Name)
	if err != nil {
		return res, err
	}
	log.Debug("Scanning pull requests", "count", len(prs))

	for _, pr := range prs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.PullRequests++
		res.OpenLinks = append(res.OpenLinks, pr.HTMLURL)

		blob, err := gh.FetchDiff(ctx, pr)
		if errors.Is(err, github.ErrNoop) {
			log.Debug("Skipping pull request without files", "link", pr.HTMLURL)
			res.Skipped++
			continue
		}
		if err != nil {
			return res, err
		}

		alerted, err := s.scanPullRequest(ctx, repo, pr, blob)
		switch {
		case errors.Is(err, match.ErrOutOfOrderRange), errors.Is(err, diff.ErrMalformed):
			log.Error("Skipping pull request with a broken diff", "link", pr.HTMLURL, "error", err)
			res.Failed++
		case err != nil:
			return res, err
		case alerted:
			res.Alerts++
		}
	}
	return res, nil
}

// scanPullRequest checks the source side of each file, then the target side
// when the source did not alert.
func (s *Scanner) scanPullRequest(ctx context.Context, repo *watch.WatchedRepo, pr github.PullRequest, blob string) (bool, error) {
	files, err := s.parse(blob)
	if err != nil {
		return false, err
	}

	alerted := false
	for _, f := range files {
		hit, err := s.matcher.AlertIfWatchedChanges(ctx, repo, f, pr.HTMLURL, blob, diff.SideSource)
		if err != nil {
			return alerted, err
		}
		if hit {
			alerted = true
			continue
		}
		hit, err = s.matcher.AlertIfWatchedChanges(ctx, repo, f, pr.HTMLURL, blob, diff.SideTarget)
		if err != nil {
			return alerted, err
		}
		alerted = alerted || hit
	}
	return alerted, nil
}

func (s *Scanner) prune(openLinks []string) {
	open := make(map[string]struct{}, len(openLinks))
	for _, link := range openLinks {
		open[link] = struct{}{}
	}
	removed, err := s.pruner.Prune(func(link string) bool {
		_, ok := open[link]
		return ok
	})
	if err != nil {
		s.log.Warn("Failed to prune ledger", "error", err)
		return
	}
	if removed > 0 {
		s.log.Info("Pruned ledger", "removed", removed)
	}
}

// Run scans, then waits interval, until ctx is done. A failed pass is logged
// and retried on the next tick.
func (s *Scanner) Run(ctx context.Context, conf *watch.Configuration, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Stopping")
			return nil
		case <-timer.C:
		}

		if _, err := s.FindChanges(ctx, conf); err != nil && ctx.Err() == nil {
			s.log.Error("Scan failed", "error", err)
		}

		next := time.Now().Add(interval)
		s.log.Info("Next scan", "at", next.Format(time.Kitchen), "in", humanize.Time(next))
		timer.Reset(interval)
	}
}
