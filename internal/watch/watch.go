// Package watch models what a user wants to be alerted about: per-user,
// per-repository file paths, directories, line ranges, and regexes.
package watch

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultBaseURL is the API root used when a user does not configure one.
const DefaultBaseURL = "https://api.github.com"

// LineRange is an inclusive range of source lines. The zero value is not
// meaningful; use NewLineRange or AnyLines.
//
// End < Start is accepted here and rejected lazily by the match engine.
type LineRange struct {
	Start int
	End   int
}

// NewLineRange returns the range [start, end].
func NewLineRange(start, end int) LineRange {
	return LineRange{Start: start, End: end}
}

// AnyLines returns the unbounded range (-inf, +inf).
func AnyLines() LineRange {
	return LineRange{Start: math.MinInt, End: math.MaxInt}
}

// String renders the range as "(start, end)" with infinite bounds as "-inf"/"inf".
func (r LineRange) String() string {
	return fmt.Sprintf("(%s, %s)", formatBound(r.Start), formatBound(r.End))
}

func formatBound(n int) string {
	switch n {
	case math.MinInt:
		return "-inf"
	case math.MaxInt:
		return "inf"
	}
	return strconv.Itoa(n)
}

// WatchedPath is a file or directory of interest. A Path ending in "/" is a
// directory and matches any file beneath it regardless of Ranges.
type WatchedPath struct {
	Path   string
	Ranges []LineRange
}

// IsDirectory reports whether the path denotes a directory.
func (p WatchedPath) IsDirectory() bool {
	return strings.HasSuffix(p.Path, "/")
}

// WatchedRepo holds the watched paths and regexes for one repository.
// Paths are unique by Path.
type WatchedRepo struct {
	Name    string
	Paths   []WatchedPath
	Regexes []string
}

// Path returns the entry with exactly the given path, or nil.
func (r *WatchedRepo) Path(path string) *WatchedPath {
	for i := range r.Paths {
		if r.Paths[i].Path == path {
			return &r.Paths[i]
		}
	}
	return nil
}

// WatchedUser is a repository owner (user or organization) with the
// credentials used to reach its API. Repos are unique by Name.
type WatchedUser struct {
	Name    string
	Repos   []WatchedRepo
	Token   string
	BaseURL string
}

// Repo returns the repository with the given name, or nil.
func (u *WatchedUser) Repo(name string) *WatchedRepo {
	for i := range u.Repos {
		if u.Repos[i].Name == name {
			return &u.Repos[i]
		}
	}
	return nil
}

// Configuration is the root aggregate. Users are unique by Name.
type Configuration struct {
	Users   []WatchedUser
	Silent  bool
	Verbose bool
}

// User returns the user with the given name, or nil.
func (c *Configuration) User(name string) *WatchedUser {
	for i := range c.Users {
		if c.Users[i].Name == name {
			return &c.Users[i]
		}
	}
	return nil
}

// MergeUser folds incoming into the configuration.
//
// Repos are merged by name and paths by path string. Ranges of an existing
// path are appended to, never replaced or deduplicated, so merging the same
// range twice records it twice. A file path without ranges counts as
// AnyLines when merged. Regexes are appended the same way. A token or
// base URL on incoming only fills a blank value on the existing user.
func (c *Configuration) MergeUser(incoming WatchedUser) {
	existing := c.User(incoming.Name)
	if existing == nil {
		c.Users = append(c.Users, cloneUser(incoming))
		return
	}
	if existing.Token == "" {
		existing.Token = incoming.Token
	}
	if existing.BaseURL == "" {
		existing.BaseURL = incoming.BaseURL
	}
	for _, repo := range incoming.Repos {
		existing.mergeRepo(repo)
	}
}

func (u *WatchedUser) mergeRepo(incoming WatchedRepo) {
	existing := u.Repo(incoming.Name)
	if existing == nil {
		u.Repos = append(u.Repos, cloneRepo(incoming))
		return
	}
	for _, path := range incoming.Paths {
		existing.mergePath(path)
	}
	existing.Regexes = append(existing.Regexes, incoming.Regexes...)
}

func (r *WatchedRepo) mergePath(incoming WatchedPath) {
	existing := r.Path(incoming.Path)
	if existing == nil {
		r.Paths = append(r.Paths, clonePath(incoming))
		return
	}
	if existing.IsDirectory() {
		existing.Ranges = append(existing.Ranges, incoming.Ranges...)
		return
	}
	existing.Ranges = append(fileRanges(existing.Ranges), fileRanges(incoming.Ranges)...)
}

// fileRanges returns ranges, or AnyLines when a file is watched without
// ranges, so that merging a range into a whole-file watch keeps every line.
func fileRanges(ranges []LineRange) []LineRange {
	if len(ranges) == 0 {
		return []LineRange{AnyLines()}
	}
	return ranges
}

func cloneUser(u WatchedUser) WatchedUser {
	out := u
	out.Repos = nil
	for _, r := range u.Repos {
		out.Repos = append(out.Repos, cloneRepo(r))
	}
	return out
}

func cloneRepo(r WatchedRepo) WatchedRepo {
	out := r
	out.Paths = nil
	for _, p := range r.Paths {
		out.Paths = append(out.Paths, clonePath(p))
	}
	if r.Regexes != nil {
		out.Regexes = append([]string(nil), r.Regexes...)
	}
	return out
}

func clonePath(p WatchedPath) WatchedPath {
	out := p
	if p.Ranges != nil {
		out.Ranges = append([]LineRange(nil), p.Ranges...)
	}
	return out
}
