package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	gogithub "github.com/google/go-github/v71/github"
	"github.com/jmcampanini/github-watcher/internal/diff"
	"golang.org/x/time/rate"
)

const perPage = 100

// Options tune the HTTP behavior of a Client.
type Options struct {
	Timeout           time.Duration // 0 = no timeout
	RequestsPerSecond float64       // 0 = unlimited
}

// Client provides GitHub operations over the REST API.
type Client struct {
	api *gogithub.Client
	log *clog.Logger
}

var _ GitHub = &Client{}

// New creates a Client for the API rooted at baseURL, authenticated with
// token when it is not empty.
func New(baseURL, token string, opts Options) (*Client, error) {
	return newClient(baseURL, token, opts.Timeout, newLimiter(opts.RequestsPerSecond))
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func newClient(baseURL, token string, timeout time.Duration, limiter *rate.Limiter) (*Client, error) {
	var transport http.RoundTripper = http.DefaultTransport
	if limiter != nil {
		transport = &throttledTransport{base: transport, limiter: limiter}
	}
	api := gogithub.NewClient(&http.Client{Timeout: timeout, Transport: transport})
	if token != "" {
		api = api.WithAuthToken(token)
	}

	if baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
		}
		api.BaseURL = u
	}

	return &Client{
		api: api,
		log: clog.Default().WithPrefix("github"),
	}, nil
}

// throttledTransport waits on a shared limiter before each request.
type throttledTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

func (c *Client) ListOpenPullRequests(ctx context.Context, owner, repo string) ([]PullRequest, error) {
	c.log.Debug("Listing open pull requests", "owner", owner, "repo", repo)

	opts := &gogithub.PullRequestListOptions{
		State:       "open",
		ListOptions: gogithub.ListOptions{PerPage: perPage},
	}
	var prs []PullRequest
	for {
		page, resp, err := c.api.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list pull requests for %s/%s: %w", owner, repo, err)
		}
		for _, pr := range page {
			prs = append(prs, toPullRequest(pr))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.log.Debug("Listed open pull requests", "owner", owner, "repo", repo, "count", len(prs))
	return prs, nil
}

func toPullRequest(pr *gogithub.PullRequest) PullRequest {
	return PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		HTMLURL:   pr.GetHTMLURL(),
		UpdatedAt: pr.GetUpdatedAt().Time,
		Base:      toRef(pr.GetBase()),
		Head:      toRef(pr.GetHead()),
	}
}

func toRef(b *gogithub.PullRequestBranch) Ref {
	owner := b.GetUser().GetLogin()
	if owner == "" {
		owner = b.GetRepo().GetOwner().GetLogin()
	}
	return Ref{
		Owner: owner,
		Repo:  b.GetRepo().GetName(),
		SHA:   b.GetSHA(),
		Ref:   b.GetRef(),
	}
}

// FetchDiff compares base.owner:base.sha with head.owner:head.sha in the
// base repository. The API returns one patch per file without headers, so a
// git-style header is added to each, carrying the previous name of a
// renamed file. A rename without a patch keeps only its header. Other files
// without a patch (binary or too large) are left out.
func (c *Client) FetchDiff(ctx context.Context, pr PullRequest) (string, error) {
	base := pr.Base.Owner + ":" + pr.Base.SHA
	head := pr.Head.Owner + ":" + pr.Head.SHA
	c.log.Debug("Comparing commits", "repo", pr.Base.Repo, "base", base, "head", head)

	cmp, _, err := c.api.Repositories.CompareCommits(ctx, pr.Base.Owner, pr.Base.Repo, base, head, nil)
	if err != nil {
		return "", fmt.Errorf("failed to compare %s...%s: %w", base, head, err)
	}
	if len(cmp.Files) == 0 {
		return "", fmt.Errorf("%s: %w", pr.HTMLURL, ErrNoop)
	}

	var sb strings.Builder
	for _, f := range cmp.Files {
		newName := f.GetFilename()
		oldName := f.GetPreviousFilename()
		if oldName == "" {
			oldName = newName
		}
		if f.Patch == nil {
			if oldName != newName {
				sb.WriteString(diff.RenameHeader(oldName, newName))
				continue
			}
			c.log.Debug("Skipping file without patch", "file", newName, "status", f.GetStatus())
			continue
		}
		sb.WriteString(diff.FileHeader(oldName, newName))
		sb.WriteString(f.GetPatch())
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (c *Client) ListBranches(ctx context.Context, owner, repo string) ([]Branch, error) {
	opts := &gogithub.BranchListOptions{ListOptions: gogithub.ListOptions{PerPage: perPage}}
	var branches []Branch
	for {
		page, resp, err := c.api.Repositories.ListBranches(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list branches for %s/%s: %w", owner, repo, err)
		}
		for _, b := range page {
			branch := Branch{
				Owner:     owner,
				Repo:      repo,
				Name:      b.GetName(),
				SHA:       b.GetCommit().GetSHA(),
				Protected: b.GetProtected(),
			}
			// The branch listing carries only the commit SHA.
			commit, _, err := c.api.Repositories.GetCommit(ctx, owner, repo, branch.SHA, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to get commit %s of branch %s: %w", branch.SHA, branch.Name, err)
			}
			branch.UpdatedAt = commit.GetCommit().GetCommitter().GetDate().Time
			branches = append(branches, branch)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return branches, nil
}

func (c *Client) ClosePullRequest(ctx context.Context, pr PullRequest) error {
	_, _, err := c.api.PullRequests.Edit(ctx, pr.Base.Owner, pr.Base.Repo, pr.Number, &gogithub.PullRequest{
		State: gogithub.Ptr("closed"),
	})
	if err != nil {
		return fmt.Errorf("failed to close pull request #%d: %w", pr.Number, err)
	}
	return nil
}

func (c *Client) CommentPullRequest(ctx context.Context, pr PullRequest, body string) error {
	_, _, err := c.api.Issues.CreateComment(ctx, pr.Base.Owner, pr.Base.Repo, pr.Number, &gogithub.IssueComment{
		Body: gogithub.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("failed to comment on pull request #%d: %w", pr.Number, err)
	}
	return nil
}

func (c *Client) DeleteBranch(ctx context.Context, b Branch) error {
	if _, err := c.api.Git.DeleteRef(ctx, b.Owner, b.Repo, "heads/"+b.Name); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", b.Name, err)
	}
	return nil
}

func (c *Client) CommentCommit(ctx context.Context, b Branch, body string) error {
	_, _, err := c.api.Repositories.CreateComment(ctx, b.Owner, b.Repo, b.SHA, &gogithub.RepositoryComment{
		Body: gogithub.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("failed to comment on branch %s: %w", b.Name, err)
	}
	return nil
}
