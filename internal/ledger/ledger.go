// Package ledger records which pull requests have already been alerted on.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	clog "github.com/charmbracelet/log"
)

// DefaultPath is where the alert ledger lives unless configured otherwise.
const DefaultPath = "/tmp/watcher_alert.log"

// MatchMode controls how a stored line is compared to a link.
type MatchMode string

const (
	// MatchExact requires the trimmed line to equal the link.
	MatchExact MatchMode = "exact"
	// MatchSubstring accepts any line containing the link. A link that is a
	// prefix of a stored link (".../pull/1" vs ".../pull/12") also matches.
	MatchSubstring MatchMode = "substring"
)

// IsValid reports whether m is a known mode.
func (m MatchMode) IsValid() bool {
	switch m {
	case MatchExact, MatchSubstring:
		return true
	}
	return false
}

// Ledger is an append-only set of alerted pull request links.
type Ledger interface {
	AlreadyAlerted(link string) (bool, error)
	MarkAsAlerted(link string) error
}

// Pruner drops ledger entries.
type Pruner interface {
	Prune(keep func(link string) bool) (int, error)
}

// File is a Ledger backed by a text file with one link per line.
// All methods are safe for concurrent use within a process.
type File struct {
	log  *clog.Logger
	mode MatchMode
	mu   sync.Mutex
	path string
}

var (
	_ Ledger = &File{}
	_ Pruner = &File{}
)

// NewFile returns a ledger stored at path. An empty mode means MatchExact.
func NewFile(path string, mode MatchMode) *File {
	if mode == "" {
		mode = MatchExact
	}
	return &File{
		log:  clog.Default().WithPrefix("ledger"),
		mode: mode,
		path: path,
	}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// AlreadyAlerted reports whether link has been recorded. A ledger file that
// cannot be opened counts as empty.
func (f *File) AlreadyAlerted(link string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.log.Warn("Could not open ledger, treating as empty", "path", f.path, "error", err)
		}
		return false, nil
	}
	defer fp.Close()

	scanner := bufio.NewScanner(fp)
	for scanner.Scan() {
		if f.matches(scanner.Text(), link) {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("failed to read ledger %s: %w", f.path, err)
	}
	return false, nil
}

func (f *File) matches(line, link string) bool {
	if f.mode == MatchSubstring {
		return strings.Contains(line, link)
	}
	return strings.TrimSpace(line) == link
}

// MarkAsAlerted appends link and syncs the file before returning.
func (f *File) MarkAsAlerted(link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger %s: %w", f.path, err)
	}
	if _, err := fp.WriteString(link + "\n"); err != nil {
		_ = fp.Close()
		return fmt.Errorf("failed to append to ledger %s: %w", f.path, err)
	}
	if err := fp.Sync(); err != nil {
		_ = fp.Close()
		return fmt.Errorf("failed to sync ledger %s: %w", f.path, err)
	}
	if err := fp.Close(); err != nil {
		return fmt.Errorf("failed to close ledger %s: %w", f.path, err)
	}
	f.log.Debug("Recorded alert", "link", link)
	return nil
}

// Links returns every recorded link in file order, skipping blank lines.
func (f *File) Links() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readLinks()
}

func (f *File) readLinks() ([]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read ledger %s: %w", f.path, err)
	}
	var links []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			links = append(links, line)
		}
	}
	return links, nil
}

// Prune rewrites the ledger keeping only links for which keep returns true,
// and returns how many were dropped. The rewrite goes through a temp file in
// the same directory followed by a rename.
func (f *File) Prune(keep func(link string) bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	links, err := f.readLinks()
	if err != nil {
		return 0, err
	}
	if len(links) == 0 {
		return 0, nil
	}

	var kept []string
	for _, link := range links {
		if keep(link) {
			kept = append(kept, link)
		}
	}
	removed := len(links) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".watcher-ledger-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, link := range kept {
		if _, err := w.WriteString(link + "\n"); err != nil {
			_ = tmp.Close()
			return 0, fmt.Errorf("failed to write temp ledger: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("failed to write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("failed to sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return 0, fmt.Errorf("failed to replace ledger %s: %w", f.path, err)
	}

	f.log.Info("Pruned ledger", "path", f.path, "removed", removed, "kept", len(kept))
	return removed, nil
}
