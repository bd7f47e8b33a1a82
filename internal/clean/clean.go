// Package clean finds stale branches and pull requests in watched
// repositories and closes, deletes, or comments on them.
package clean

import (
	"context"
	"errors"
	"fmt"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/jmcampanini/github-watcher/internal/github"
	"github.com/jmcampanini/github-watcher/internal/watch"
)

// DateLayout is the accepted --older-than format.
const DateLayout = "2006-01-02"

type Kind string

const (
	KindBranch      Kind = "branch"
	KindPullRequest Kind = "pull request"
)

// Entity is a branch or a pull request. What can be done to it depends on
// which of Closer, Deleter, and Commenter it implements.
type Entity interface {
	Kind() Kind
	Name() string
	LastUpdated() time.Time
}

type Closer interface {
	Close(ctx context.Context) error
}

type Deleter interface {
	Delete(ctx context.Context) error
}

type Commenter interface {
	Comment(ctx context.Context, body string) error
}

// Branch can be deleted and commented on (on its head commit).
type Branch struct {
	gh     github.GitHub
	branch github.Branch
}

var (
	_ Entity    = &Branch{}
	_ Deleter   = &Branch{}
	_ Commenter = &Branch{}
)

func (b *Branch) Kind() Kind             { return KindBranch }
func (b *Branch) Name() string           { return b.branch.Owner + "/" + b.branch.Repo + ":" + b.branch.Name }
func (b *Branch) LastUpdated() time.Time { return b.branch.UpdatedAt }

func (b *Branch) Delete(ctx context.Context) error {
	return b.gh.DeleteBranch(ctx, b.branch)
}

func (b *Branch) Comment(ctx context.Context, body string) error {
	return b.gh.CommentCommit(ctx, b.branch, body)
}

// PullRequest can be closed and commented on.
type PullRequest struct {
	gh github.GitHub
	pr github.PullRequest
}

var (
	_ Entity    = &PullRequest{}
	_ Closer    = &PullRequest{}
	_ Commenter = &PullRequest{}
)

func (p *PullRequest) Kind() Kind             { return KindPullRequest }
func (p *PullRequest) Name() string           { return p.pr.HTMLURL }
func (p *PullRequest) LastUpdated() time.Time { return p.pr.UpdatedAt }

func (p *PullRequest) Close(ctx context.Context) error {
	return p.gh.ClosePullRequest(ctx, p.pr)
}

func (p *PullRequest) Comment(ctx context.Context, body string) error {
	return p.gh.CommentPullRequest(ctx, p.pr, body)
}

// Options select and act on stale entities.
type Options struct {
	OlderThan time.Time
	Close     bool
	Delete    bool
	Comment   string
	DryRun    bool
}

// ParseDate parses a YYYY-MM-DD cutoff in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// TooOld reports whether e was last updated strictly before cutoff.
func TooOld(e Entity, cutoff time.Time) bool {
	return e.LastUpdated().Before(cutoff)
}

// Action is one step taken, or planned under DryRun, on an entity.
type Action struct {
	Entity  Entity
	Verb    string // "close", "delete", or "comment"
	Applied bool
}

// Cleaner applies Options to every configured repository.
type Cleaner struct {
	clients github.ClientSource
	log     *clog.Logger
	opts    Options
}

func New(clients github.ClientSource, opts Options) *Cleaner {
	return &Cleaner{
		clients: clients,
		log:     clog.Default().WithPrefix("clean"),
		opts:    opts,
	}
}

// Clean visits every repository in conf. Protected branches are never
// touched. It stops at the first GitHub error and returns the actions taken
// so far.
func (c *Cleaner) Clean(ctx context.Context, conf *watch.Configuration) ([]Action, error) {
	var actions []Action
	for _, u := range conf.Users {
		gh, err := c.clients.For(u.BaseURL, u.Token)
		if err != nil {
			return actions, fmt.Errorf("failed to create client for %s: %w", u.Name, err)
		}
		for _, r := range u.Repos {
			entities, err := c.collect(ctx, gh, u.Name, r.Name)
			if err != nil {
				return actions, err
			}
			for _, e := range entities {
				if !TooOld(e, c.opts.OlderThan) {
					continue
				}
				done, err := c.apply(ctx, e)
				actions = append(actions, done...)
				if err != nil {
					return actions, err
				}
			}
		}
	}
	return actions, nil
}

func (c *Cleaner) collect(ctx context.Context, gh github.GitHub, owner, repo string) ([]Entity, error) {
	var entities []Entity
	if c.opts.Delete || c.opts.Comment != "" {
		branches, err := gh.ListBranches(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		for _, b := range branches {
			if b.Protected {
				c.log.Debug("Skipping protected branch", "owner", owner, "repo", repo, "branch", b.Name)
				continue
			}
			entities = append(entities, &Branch{gh: gh, branch: b})
		}
	}
	if c.opts.Close || c.opts.Comment != "" {
		prs, err := gh.ListOpenPullRequests(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		for _, pr := range prs {
			entities = append(entities, &PullRequest{gh: gh, pr: pr})
		}
	}
	return entities, nil
}

// apply comments before closing or deleting so the comment lands while
// the entity still exists.
func (c *Cleaner) apply(ctx context.Context, e Entity) ([]Action, error) {
	var actions []Action
	run := func(verb string, fn func() error) error {
		a := Action{Entity: e, Verb: verb}
		if c.opts.DryRun {
			c.log.Info("Would "+verb, "kind", e.Kind(), "name", e.Name())
			actions = append(actions, a)
			return nil
		}
		c.log.Info("Applying "+verb, "kind", e.Kind(), "name", e.Name())
		if err := fn(); err != nil {
			return fmt.Errorf("failed to %s %s %s: %w", verb, e.Kind(), e.Name(), err)
		}
		a.Applied = true
		actions = append(actions, a)
		return nil
	}

	var errs []error
	if commenter, ok := e.(Commenter); ok && c.opts.Comment != "" {
		errs = append(errs, run("comment", func() error { return commenter.Comment(ctx, c.opts.Comment) }))
	}
	if closer, ok := e.(Closer); ok && c.opts.Close {
		errs = append(errs, run("close", func() error { return closer.Close(ctx) }))
	}
	if deleter, ok := e.(Deleter); ok && c.opts.Delete {
		errs = append(errs, run("delete", func() error { return deleter.Delete(ctx) }))
	}
	return actions, errors.Join(errs...)
}
