package watch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultFileName is the watch config file name under the home directory.
const DefaultFileName = ".github-watcher.yml"

// ConfigNotFoundError is returned when the watch config is absent or empty.
type ConfigNotFoundError struct {
	Path string
}

func (e *ConfigNotFoundError) Error() string {
	if e.Path == "" {
		return "no watch configuration found"
	}
	return fmt.Sprintf("no watch configuration found at %s", e.Path)
}

// DefaultPath returns ~/.github-watcher.yml for the given home directory.
func DefaultPath(homeDir string) string {
	return filepath.Join(homeDir, DefaultFileName)
}

// Load reads the watch config at path.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	conf, err := Unmarshal(data)
	if err != nil {
		var notFound *ConfigNotFoundError
		if errors.As(err, &notFound) {
			notFound.Path = path
			return nil, notFound
		}
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return conf, nil
}

// LoadOrEmpty is Load, except that a missing or empty file yields an empty
// configuration that can be merged into.
func LoadOrEmpty(path string) (*Configuration, error) {
	conf, err := Load(path)
	var notFound *ConfigNotFoundError
	if errors.As(err, &notFound) {
		return &Configuration{}, nil
	}
	return conf, err
}

// Save writes the configuration to path. The file carries tokens, so it is
// only readable by the owner.
func Save(path string, c *Configuration) error {
	data, err := Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadToken reads an access token from the first line of path.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file %s: %w", path, err)
	}
	token, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(token), nil
}

// FillTokens sets token on every user that has none.
func (c *Configuration) FillTokens(token string) {
	for i := range c.Users {
		if c.Users[i].Token == "" {
			c.Users[i].Token = token
		}
	}
}

// MissingToken reports whether any user still lacks a token.
func (c *Configuration) MissingToken() bool {
	for _, u := range c.Users {
		if u.Token == "" {
			return true
		}
	}
	return false
}

// Validate checks that the configuration has something to watch and that
// every entry is usable. Line range order is not checked here.
func (c *Configuration) Validate() error {
	if len(c.Users) == 0 {
		return errors.New("no users configured")
	}
	for _, u := range c.Users {
		if u.Name == "" {
			return errors.New("user name cannot be empty")
		}
		if len(u.Repos) == 0 {
			return fmt.Errorf("user %s has no repos", u.Name)
		}
		for _, r := range u.Repos {
			if len(r.Paths) == 0 && len(r.Regexes) == 0 {
				return fmt.Errorf("repo %s/%s has no watch targets", u.Name, r.Name)
			}
			for _, p := range r.Paths {
				if p.Path == "" {
					return fmt.Errorf("repo %s/%s has an empty path", u.Name, r.Name)
				}
				if strings.HasPrefix(p.Path, "/") {
					return fmt.Errorf("repo %s/%s: absolute path %q is not allowed", u.Name, r.Name, p.Path)
				}
			}
			for _, re := range r.Regexes {
				if _, err := regexp.Compile(re); err != nil {
					return fmt.Errorf("repo %s/%s: invalid regex %q: %w", u.Name, r.Name, re, err)
				}
			}
		}
	}
	return nil
}
