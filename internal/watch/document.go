package watch

import (
	"bytes"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk shape of a Configuration, keyed by user name:
//
//	akellehe:
//	  base_url: https://api.github.com
//	  token: '*****'
//	  repos:
//	    github_watcher:
//	      paths:
//	        docs/: null
//	        github_watcher/settings.py: [[0, 1], [4, 5]]
//	      regexes: [foo, bar]
type Document map[string]UserDocument

// UserDocument is the per-user section of a Document.
type UserDocument struct {
	BaseURL string                  `yaml:"base_url"`
	Token   string                  `yaml:"token"`
	Repos   map[string]RepoDocument `yaml:"repos"`
}

// RepoDocument is the per-repository section of a UserDocument.
// A directory path maps to null or an empty list.
type RepoDocument struct {
	Paths   map[string][]LineRange `yaml:"paths"`
	Regexes []string               `yaml:"regexes"`
}

// ToStructure converts a Configuration into its nested document form.
func ToStructure(c *Configuration) Document {
	doc := make(Document, len(c.Users))
	for _, u := range c.Users {
		repos := make(map[string]RepoDocument, len(u.Repos))
		for _, r := range u.Repos {
			paths := make(map[string][]LineRange, len(r.Paths))
			for _, p := range r.Paths {
				paths[p.Path] = p.Ranges
			}
			repos[r.Name] = RepoDocument{Paths: paths, Regexes: r.Regexes}
		}
		doc[u.Name] = UserDocument{BaseURL: u.BaseURL, Token: u.Token, Repos: repos}
	}
	return doc
}

// FromStructure builds a Configuration from its document form. Users, repos,
// and paths are ordered by key. An empty document is a *ConfigNotFoundError.
func FromStructure(doc Document) (*Configuration, error) {
	if len(doc) == 0 {
		return nil, &ConfigNotFoundError{}
	}
	conf := &Configuration{}
	for _, userName := range slices.Sorted(maps.Keys(doc)) {
		ud := doc[userName]
		user := WatchedUser{
			Name:    userName,
			Token:   ud.Token,
			BaseURL: ud.BaseURL,
		}
		if user.BaseURL == "" {
			user.BaseURL = DefaultBaseURL
		}
		for _, repoName := range slices.Sorted(maps.Keys(ud.Repos)) {
			rd := ud.Repos[repoName]
			repo := WatchedRepo{Name: repoName}
			for _, path := range slices.Sorted(maps.Keys(rd.Paths)) {
				wp := WatchedPath{Path: path}
				if ranges := rd.Paths[path]; len(ranges) > 0 {
					wp.Ranges = ranges
				}
				repo.Paths = append(repo.Paths, wp)
			}
			if len(rd.Regexes) > 0 {
				repo.Regexes = rd.Regexes
			}
			user.Repos = append(user.Repos, repo)
		}
		conf.Users = append(conf.Users, user)
	}
	return conf, nil
}

// Marshal renders the configuration as YAML.
func Marshal(c *Configuration) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ToStructure(c)); err != nil {
		return nil, fmt.Errorf("failed to encode watch config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode watch config: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses YAML produced by Marshal (or written by hand).
func Unmarshal(data []byte) (*Configuration, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, &ConfigNotFoundError{}
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse watch config: %w", err)
	}
	return FromStructure(doc)
}

// MarshalYAML writes the range as a flow sequence [start, end], using
// .inf/-.inf for unbounded ends.
func (r LineRange) MarshalYAML() (any, error) {
	return &yaml.Node{
		Kind:    yaml.SequenceNode,
		Style:   yaml.FlowStyle,
		Content: []*yaml.Node{boundNode(r.Start), boundNode(r.End)},
	}, nil
}

func boundNode(n int) *yaml.Node {
	switch n {
	case math.MinInt:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: "-.inf"}
	case math.MaxInt:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: ".inf"}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(n)}
}

// UnmarshalYAML reads a [start, end] pair.
func (r *LineRange) UnmarshalYAML(value *yaml.Node) error {
	var bounds []float64
	if err := value.Decode(&bounds); err != nil {
		return fmt.Errorf("line %d: line range must be [start, end]: %w", value.Line, err)
	}
	if len(bounds) != 2 {
		return fmt.Errorf("line %d: line range must have exactly 2 bounds, got %d", value.Line, len(bounds))
	}
	r.Start = parseBound(bounds[0])
	r.End = parseBound(bounds[1])
	return nil
}

func parseBound(f float64) int {
	switch {
	case math.IsInf(f, -1) || f <= math.MinInt:
		return math.MinInt
	case math.IsInf(f, 1) || f >= math.MaxInt:
		return math.MaxInt
	}
	return int(f)
}
