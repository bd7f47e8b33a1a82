package git

import (
	"net/url"
	"strings"
)

// Remote is a GitHub repository a local checkout points at.
type Remote struct {
	Host  string
	Owner string
	Repo  string
}

// APIBaseURL returns the REST API root for the remote's host:
// api.github.com for github.com, /api/v3 on the host otherwise.
func (r Remote) APIBaseURL() string {
	if r.Host == "" || r.Host == "github.com" {
		return "https://api.github.com"
	}
	return "https://" + r.Host + "/api/v3"
}

type Git interface {

	// GetWorktreeRoot returns the absolute path to the root of the git tree.
	// If not in a git repository, returns ("", nil).
	// Returns an error only if the git command itself fails (e.g., git not installed).
	GetWorktreeRoot() (string, error)

	// GetDefaultRemote returns the default remote name.
	// Returns the value of git config remote.pushDefault if set, otherwise returns the fallback parameter.
	GetDefaultRemote(fallback string) (string, error)

	// GetRemoteURL returns the fetch URL of the named remote.
	GetRemoteURL(remoteName string) (string, error)
}

// ParseRemoteURL extracts host, owner, and repository from a remote URL.
// It accepts https, ssh, git, and scp-like ("git@host:owner/repo.git")
// forms. ok is false when the URL has no owner/repo path.
func ParseRemoteURL(raw string) (Remote, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Remote{}, false
	}

	var host, path string
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return Remote{}, false
		}
		host, path = u.Hostname(), u.Path
	} else {
		// scp-like: [user@]host:path
		at := strings.LastIndex(raw, "@")
		colon := strings.Index(raw[at+1:], ":")
		if colon < 0 {
			return Remote{}, false
		}
		host = raw[at+1 : at+1+colon]
		path = raw[at+1+colon+1:]
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return Remote{}, false
	}
	owner, repo := parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || repo == "" {
		return Remote{}, false
	}
	return Remote{Host: host, Owner: owner, Repo: repo}, true
}
