package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
)

// GitCli reads repository information by executing the git CLI.
type GitCli struct {
	log        *clog.Logger
	timeout    time.Duration
	workingDir string
}

var _ Git = &GitCli{}

// New creates a new GitCli instance that executes git commands in the specified working directory.
func New(workingDir string, timeout time.Duration) Git {
	return &GitCli{
		log:        clog.Default().WithPrefix("git"),
		timeout:    timeout,
		workingDir: workingDir,
	}
}

func (g *GitCli) executeGitCommand(args ...string) (string, error) {
	g.log.Debug("Executing git command", "cmd", "git", "args", args, "workingDir", g.workingDir)

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workingDir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			g.log.Warn("git command timed out", "args", args, "timeout", g.timeout, "error", err)
			return "", fmt.Errorf("git %s timed out after %s", strings.Join(args, " "), g.timeout)
		}
		g.log.Debug("Git command failed", "args", args, "stderr", stderr.String(), "error", err)
		return "", fmt.Errorf("git %s failed: %w: %s", strings.Join(args, " "), err, stderr.String())
	}

	output := strings.TrimSpace(stdout.String())
	g.log.Debug("Git command succeeded", "args", args, "output", output)
	return output, nil
}

func (g *GitCli) GetWorktreeRoot() (string, error) {
	output, err := g.executeGitCommand("rev-parse", "--show-toplevel")
	if err != nil {
		if strings.Contains(err.Error(), "not a git repo") {
			return "", nil
		}
		return "", fmt.Errorf("git command failed: %w", err)
	}
	return output, nil
}

func (g *GitCli) GetDefaultRemote(fallback string) (string, error) {
	output, err := g.executeGitCommand("config", "--get", "remote.pushDefault")
	if err == nil && output != "" {
		g.log.Debug("Found remote.pushDefault", "remote", output)
		return output, nil
	}

	g.log.Debug("No remote.pushDefault configured, using fallback", "fallback", fallback)
	return fallback, nil
}

func (g *GitCli) GetRemoteURL(remoteName string) (string, error) {
	output, err := g.executeGitCommand("remote", "get-url", remoteName)
	if err != nil {
		return "", fmt.Errorf("failed to get url of remote %s: %w", remoteName, err)
	}
	return output, nil
}

// DetectRemote resolves the GitHub repository of the checkout containing
// the working directory. ok is false outside a git repository or when the
// remote is not a recognizable owner/repo URL.
func DetectRemote(g Git) (Remote, bool, error) {
	root, err := g.GetWorktreeRoot()
	if err != nil || root == "" {
		return Remote{}, false, err
	}
	name, err := g.GetDefaultRemote("origin")
	if err != nil {
		return Remote{}, false, err
	}
	raw, err := g.GetRemoteURL(name)
	if err != nil {
		return Remote{}, false, err
	}
	remote, ok := ParseRemoteURL(raw)
	return remote, ok, nil
}
