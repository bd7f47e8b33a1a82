package github

import (
	"context"
	"errors"
	"time"
)

// ErrNoop means a comparison produced no files to inspect.
var ErrNoop = errors.New("pull request affects no files")

type GitHub interface {

	// ListOpenPullRequests returns every open pull request of owner/repo.
	ListOpenPullRequests(ctx context.Context, owner, repo string) ([]PullRequest, error)

	// FetchDiff returns a unified diff between the pull request's base and
	// head commits. It returns ErrNoop when the comparison has no files.
	FetchDiff(ctx context.Context, pr PullRequest) (string, error)

	// ListBranches returns every branch of owner/repo with its last commit date.
	ListBranches(ctx context.Context, owner, repo string) ([]Branch, error)

	// ClosePullRequest closes a pull request without merging it.
	ClosePullRequest(ctx context.Context, pr PullRequest) error

	// CommentPullRequest adds a conversation comment to a pull request.
	CommentPullRequest(ctx context.Context, pr PullRequest, body string) error

	// DeleteBranch deletes the branch ref.
	DeleteBranch(ctx context.Context, b Branch) error

	// CommentCommit adds a comment to the branch's head commit.
	CommentCommit(ctx context.Context, b Branch, body string) error
}

// Ref identifies one side of a pull request.
type Ref struct {
	Owner string
	Repo  string
	SHA   string
	Ref   string
}

type PullRequest struct {
	Number    int
	Title     string
	HTMLURL   string
	UpdatedAt time.Time
	Base      Ref
	Head      Ref
}

type Branch struct {
	Owner     string
	Repo      string
	Name      string
	SHA       string
	Protected bool
	UpdatedAt time.Time
}
