// Package diff parses unified diffs into per-file hunk coordinates.
package diff

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// ErrMalformed wraps any failure to parse diff text.
var ErrMalformed = errors.New("malformed diff")

// Side selects the pre-change (source) or post-change (target) view of a file.
type Side int

const (
	SideSource Side = iota
	SideTarget
)

func (s Side) String() string {
	switch s {
	case SideSource:
		return "source"
	case SideTarget:
		return "target"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// Hunk is a contiguous changed block in both the source and target file.
type Hunk struct {
	SourceStart  int
	SourceLength int
	TargetStart  int
	TargetLength int
}

// Span returns the start line and length of the hunk on the given side.
func (h Hunk) Span(side Side) (start, length int) {
	if side == SideTarget {
		return h.TargetStart, h.TargetLength
	}
	return h.SourceStart, h.SourceLength
}

// PatchedFile is one file of a patch set. A path is empty when the file does
// not exist on that side (creation or deletion).
type PatchedFile struct {
	SourcePath string
	TargetPath string
	Hunks      []Hunk
}

// Path returns the file path on the given side.
func (f PatchedFile) Path(side Side) string {
	if side == SideTarget {
		return f.TargetPath
	}
	return f.SourcePath
}

// Parse reads a unified diff and returns its files in order.
func Parse(raw string) ([]PatchedFile, error) {
	parsed, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	files := make([]PatchedFile, 0, len(parsed))
	for _, f := range parsed {
		pf := PatchedFile{
			SourcePath: f.OldName,
			TargetPath: f.NewName,
		}
		for _, frag := range f.TextFragments {
			pf.Hunks = append(pf.Hunks, Hunk{
				SourceStart:  int(frag.OldPosition),
				SourceLength: int(frag.OldLines),
				TargetStart:  int(frag.NewPosition),
				TargetLength: int(frag.NewLines),
			})
		}
		files = append(files, pf)
	}
	return files, nil
}

// FileHeader returns the git-style header the diff fetcher prepends to a
// bare per-file patch so the concatenation parses as one patch set. oldName
// and newName differ only for a renamed file.
func FileHeader(oldName, newName string) string {
	return fmt.Sprintf("diff --git a/%[1]s b/%[2]s\n--- a/%[1]s\n+++ b/%[2]s\n", oldName, newName)
}

// RenameHeader returns a header for a file renamed without content changes.
// The file parses with both paths and no hunks.
func RenameHeader(oldName, newName string) string {
	return fmt.Sprintf("diff --git a/%[1]s b/%[2]s\nsimilarity index 100%%\nrename from %[1]s\nrename to %[2]s\n", oldName, newName)
}
