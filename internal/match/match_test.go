package match

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmcampanini/github-watcher/internal/diff"
	"github.com/jmcampanini/github-watcher/internal/ledger"
	"github.com/jmcampanini/github-watcher/internal/notify"
	"github.com/jmcampanini/github-watcher/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prLink = "https://github.com/octo/widgets/pull/7"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "a/foo/bar.py", want: "foo/bar.py"},
		{in: "b/foo/bar.py", want: "foo/bar.py"},
		{in: "foo/bar.py", want: "foo/bar.py"},
		{in: "c/foo.py", want: "c/foo.py"},
		{in: "ab/foo.py", want: "ab/foo.py"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.in))
		})
	}
}

func TestIsWatchedDirectory(t *testing.T) {
	repo := &watch.WatchedRepo{
		Name: "widgets",
		Paths: []watch.WatchedPath{
			{Path: "foo/bar/"},
			{Path: "docs/readme.md"},
		},
	}
	unrelated := &watch.WatchedRepo{
		Name:  "widgets",
		Paths: []watch.WatchedPath{{Path: "foo/bar/pants.py"}},
	}

	tests := []struct {
		name string
		repo *watch.WatchedRepo
		path string
		want bool
	}{
		{name: "file under directory", repo: repo, path: "foo/bar/pants.py", want: true},
		{name: "nested file under directory", repo: repo, path: "foo/bar/baz/qux.py", want: true},
		{name: "sibling directory", repo: repo, path: "foo/baz.py", want: false},
		{name: "watched file is not a directory", repo: repo, path: "docs/readme.md", want: false},
		{name: "unrelated file entry", repo: unrelated, path: "foo/bar/not-watched.py", want: false},
		{name: "nil repo", repo: nil, path: "foo/bar/pants.py", want: false},
		{name: "no paths", repo: &watch.WatchedRepo{Name: "widgets"}, path: "foo/bar/pants.py", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWatchedDirectory(tt.repo, tt.path))
		})
	}
}

func TestIsWatchedFile(t *testing.T) {
	dirOnly := &watch.WatchedRepo{Name: "widgets", Paths: []watch.WatchedPath{{Path: "tests/"}}}
	assert.Nil(t, IsWatchedFile(dirOnly, "tests/watched.py"))
	assert.Nil(t, IsWatchedFile(dirOnly, "tests"))

	repo := &watch.WatchedRepo{
		Name: "widgets",
		Paths: []watch.WatchedPath{
			{Path: "tests/"},
			{Path: "src/main.go", Ranges: []watch.LineRange{watch.NewLineRange(1, 5)}},
		},
	}
	got := IsWatchedFile(repo, "src/main.go")
	require.NotNil(t, got)
	assert.Equal(t, "src/main.go", got.Path)
	assert.Equal(t, []watch.LineRange{watch.NewLineRange(1, 5)}, got.Ranges)

	assert.Nil(t, IsWatchedFile(repo, "src/main.go.orig"))
	assert.Nil(t, IsWatchedFile(repo, "src/"))
	assert.Nil(t, IsWatchedFile(nil, "src/main.go"))
	assert.Nil(t, IsWatchedFile(&watch.WatchedRepo{}, "src/main.go"))
}

func TestContainsWatchedRegex(t *testing.T) {
	blob := "diff --git a/x b/x\r\n+password = hunter2\r\n-context\n"

	tests := []struct {
		name    string
		regexes []string
		want    bool
	}{
		{name: "search not full match", regexes: []string{"password"}, want: true},
		{name: "anchored to line start", regexes: []string{`^\+password`}, want: true},
		{name: "anchored to line end", regexes: []string{`hunter2$`}, want: true},
		{name: "no hit", regexes: []string{"secret"}, want: false},
		{name: "second regex hits", regexes: []string{"secret", "context"}, want: true},
		{name: "invalid regex is skipped", regexes: []string{"(", "hunter"}, want: true},
		{name: "only invalid regex", regexes: []string{"["}, want: false},
		{name: "no regexes", regexes: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &watch.WatchedRepo{Name: "widgets", Regexes: tt.regexes}
			assert.Equal(t, tt.want, ContainsWatchedRegex(repo, blob))
		})
	}

	assert.False(t, ContainsWatchedRegex(nil, blob))
}

func TestAreWatchedLines(t *testing.T) {
	tests := []struct {
		name   string
		ranges []watch.LineRange
		start  int
		end    int
		want   bool
	}{
		{name: "changed interval contains range", ranges: []watch.LineRange{watch.NewLineRange(0, 5)}, start: 0, end: 10, want: true},
		{name: "starts after range ends", ranges: []watch.LineRange{watch.NewLineRange(0, 5)}, start: 6, end: 10, want: false},
		{name: "entirely before range", ranges: []watch.LineRange{watch.NewLineRange(10, 20)}, start: 6, end: 9, want: false},
		{name: "ends on range start", ranges: []watch.LineRange{watch.NewLineRange(10, 20)}, start: 6, end: 10, want: true},
		{name: "starts on range end", ranges: []watch.LineRange{watch.NewLineRange(10, 20)}, start: 20, end: 25, want: true},
		{name: "contained in range", ranges: []watch.LineRange{watch.NewLineRange(10, 20)}, start: 12, end: 14, want: true},
		{name: "single line inside", ranges: []watch.LineRange{watch.NewLineRange(10, 20)}, start: 15, end: 15, want: true},
		{name: "second range matches", ranges: []watch.LineRange{watch.NewLineRange(0, 1), watch.NewLineRange(40, 50)}, start: 45, end: 46, want: true},
		{name: "every range rejects", ranges: []watch.LineRange{watch.NewLineRange(0, 1), watch.NewLineRange(40, 50)}, start: 10, end: 20, want: false},
		{name: "open ended range", ranges: []watch.LineRange{watch.NewLineRange(100, watch.AnyLines().End)}, start: 5000, end: 5001, want: true},
		{name: "any lines", ranges: []watch.LineRange{watch.AnyLines()}, start: 0, end: 0, want: true},
		{name: "no ranges", ranges: nil, start: 0, end: 10, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AreWatchedLines(&watch.WatchedPath{Path: "f.py", Ranges: tt.ranges}, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAreWatchedLines_OutOfOrder(t *testing.T) {
	paths := []*watch.WatchedPath{
		{Path: "f.py", Ranges: []watch.LineRange{watch.NewLineRange(0, 5)}},
		{Path: "f.py", Ranges: []watch.LineRange{watch.AnyLines()}},
		{Path: "f.py"},
		nil,
	}
	for _, p := range paths {
		got, err := AreWatchedLines(p, 10, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOutOfOrderRange)
		assert.False(t, got)
	}
}

type recordingNotifier struct {
	alerts []notify.Alert
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, alert notify.Alert) error {
	r.alerts = append(r.alerts, alert)
	return r.err
}

type memoryLedger struct {
	links   []string
	markErr error
	readErr error
}

func (m *memoryLedger) AlreadyAlerted(link string) (bool, error) {
	if m.readErr != nil {
		return false, m.readErr
	}
	for _, l := range m.links {
		if l == link {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryLedger) MarkAsAlerted(link string) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.links = append(m.links, link)
	return nil
}

func file(path string, hunks ...diff.Hunk) diff.PatchedFile {
	return diff.PatchedFile{SourcePath: "a/" + path, TargetPath: "b/" + path, Hunks: hunks}
}

func TestEngine_AlertIfWatchedChanges(t *testing.T) {
	repo := &watch.WatchedRepo{
		Name: "widgets",
		Paths: []watch.WatchedPath{
			{Path: "foo/bar/"},
			{Path: "src/main.go", Ranges: []watch.LineRange{watch.NewLineRange(10, 20)}},
			{Path: "go.mod"},
		},
		Regexes: []string{`TODO\(security\)`},
	}

	tests := []struct {
		name      string
		file      diff.PatchedFile
		blob      string
		side      diff.Side
		want      bool
		wantAlert *notify.Alert
	}{
		{
			name:      "directory match has no range",
			file:      file("foo/bar/pants.py", diff.Hunk{SourceStart: 1, SourceLength: 1, TargetStart: 1, TargetLength: 1}),
			side:      diff.SideSource,
			want:      true,
			wantAlert: &notify.Alert{File: "foo/bar/pants.py", Link: prLink},
		},
		{
			name:      "regex match on unwatched file",
			file:      file("other.py"),
			blob:      "+# TODO(security): fix\n",
			side:      diff.SideTarget,
			want:      true,
			wantAlert: &notify.Alert{File: "other.py", Link: prLink},
		},
		{
			name:      "file hunk touches range",
			file:      file("src/main.go", diff.Hunk{SourceStart: 1, SourceLength: 2, TargetStart: 1, TargetLength: 2}, diff.Hunk{SourceStart: 15, SourceLength: 3, TargetStart: 16, TargetLength: 4}),
			side:      diff.SideTarget,
			want:      true,
			wantAlert: &notify.Alert{File: "src/main.go", Start: 16, End: 20, HasRange: true, Link: prLink},
		},
		{
			name: "file hunk outside range",
			file: file("src/main.go", diff.Hunk{SourceStart: 30, SourceLength: 2, TargetStart: 30, TargetLength: 2}),
			side: diff.SideSource,
			want: false,
		},
		{
			name: "hunk ending right before range",
			file: file("src/main.go", diff.Hunk{SourceStart: 5, SourceLength: 4, TargetStart: 5, TargetLength: 4}),
			side: diff.SideSource,
			want: false,
		},
		{
			name:      "hunk end computed as start plus length",
			file:      file("src/main.go", diff.Hunk{SourceStart: 5, SourceLength: 5, TargetStart: 5, TargetLength: 5}),
			side:      diff.SideSource,
			want:      true,
			wantAlert: &notify.Alert{File: "src/main.go", Start: 5, End: 10, HasRange: true, Link: prLink},
		},
		{
			name:      "watched file without ranges matches any hunk",
			file:      file("go.mod", diff.Hunk{SourceStart: 300, SourceLength: 1, TargetStart: 300, TargetLength: 2}),
			side:      diff.SideTarget,
			want:      true,
			wantAlert: &notify.Alert{File: "go.mod", Link: prLink},
		},
		{
			name: "watched file without hunks",
			file: file("go.mod"),
			side: diff.SideTarget,
			want: false,
		},
		{
			name: "unwatched file",
			file: file("README.md", diff.Hunk{SourceStart: 1, SourceLength: 1, TargetStart: 1, TargetLength: 1}),
			side: diff.SideSource,
			want: false,
		},
		{
			name:      "new file only matches on target side",
			file:      diff.PatchedFile{SourcePath: "", TargetPath: "foo/bar/new.py", Hunks: []diff.Hunk{{TargetStart: 1, TargetLength: 3}}},
			side:      diff.SideTarget,
			want:      true,
			wantAlert: &notify.Alert{File: "foo/bar/new.py", Link: prLink},
		},
		{
			name: "new file on source side",
			file: diff.PatchedFile{SourcePath: "", TargetPath: "foo/bar/new.py", Hunks: []diff.Hunk{{TargetStart: 1, TargetLength: 3}}},
			side: diff.SideSource,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &memoryLedger{}
			n := &recordingNotifier{}

			got, err := NewEngine(l, n, false).AlertIfWatchedChanges(context.Background(), repo, tt.file, prLink, tt.blob, tt.side)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			if tt.wantAlert == nil {
				assert.Empty(t, n.alerts)
				assert.Empty(t, l.links)
				return
			}
			require.Len(t, n.alerts, 1)
			assert.Equal(t, *tt.wantAlert, n.alerts[0])
			assert.Equal(t, []string{prLink}, l.links)
		})
	}
}

func TestEngine_IdempotentAlerting(t *testing.T) {
	l := ledger.NewFile(filepath.Join(t.TempDir(), "alerts.log"), ledger.MatchExact)
	n := &recordingNotifier{}
	e := NewEngine(l, n, false)
	repo := &watch.WatchedRepo{Name: "widgets", Paths: []watch.WatchedPath{{Path: "foo/bar/"}}}
	f := file("foo/bar/pants.py", diff.Hunk{SourceStart: 1, SourceLength: 1, TargetStart: 1, TargetLength: 1})

	first, err := e.AlertIfWatchedChanges(context.Background(), repo, f, prLink, "", diff.SideSource)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := e.AlertIfWatchedChanges(context.Background(), repo, f, prLink, "", diff.SideSource)
	require.NoError(t, err)
	assert.False(t, second)

	assert.Len(t, n.alerts, 1)
	links, err := l.Links()
	require.NoError(t, err)
	assert.Equal(t, []string{prLink}, links)
}

func TestEngine_LedgerCheckPrecedesMatching(t *testing.T) {
	l := &memoryLedger{links: []string{prLink}}
	n := &recordingNotifier{}
	repo := &watch.WatchedRepo{Name: "widgets", Paths: []watch.WatchedPath{{Path: "foo/bar/"}}}

	// A hunk that would fail the order check is never inspected.
	f := file("foo/bar/x.py", diff.Hunk{SourceStart: 10, SourceLength: -5})

	got, err := NewEngine(l, n, false).AlertIfWatchedChanges(context.Background(), repo, f, prLink, "", diff.SideSource)
	require.NoError(t, err)
	assert.False(t, got)
	assert.Empty(t, n.alerts)
	assert.Equal(t, []string{prLink}, l.links)
}

func TestEngine_RegexShortCircuit(t *testing.T) {
	l := &memoryLedger{}
	n := &recordingNotifier{}
	repo := &watch.WatchedRepo{
		Name:    "widgets",
		Paths:   []watch.WatchedPath{{Path: "src/main.go", Ranges: []watch.LineRange{watch.NewLineRange(0, 5)}}},
		Regexes: []string{"DROP TABLE"},
	}
	// The out-of-order hunk would fail range matching if it were consulted.
	f := file("src/main.go", diff.Hunk{SourceStart: 10, SourceLength: -5})

	got, err := NewEngine(l, n, false).AlertIfWatchedChanges(context.Background(), repo, f, prLink, "+DROP TABLE users;", diff.SideSource)
	require.NoError(t, err)
	assert.True(t, got)
	require.Len(t, n.alerts, 1)
	assert.False(t, n.alerts[0].HasRange)
}

func TestEngine_OutOfOrderHunk(t *testing.T) {
	tests := []struct {
		name  string
		paths []watch.WatchedPath
	}{
		{name: "with ranges", paths: []watch.WatchedPath{{Path: "f.py", Ranges: []watch.LineRange{watch.NewLineRange(0, 5)}}}},
		{name: "without ranges", paths: []watch.WatchedPath{{Path: "f.py"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &memoryLedger{}
			n := &recordingNotifier{}
			repo := &watch.WatchedRepo{Name: "widgets", Paths: tt.paths}

			got, err := NewEngine(l, n, false).AlertIfWatchedChanges(context.Background(), repo, file("f.py", diff.Hunk{SourceStart: 10, SourceLength: -5}), prLink, "", diff.SideSource)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrOutOfOrderRange)
			assert.False(t, got)
			assert.Empty(t, n.alerts)
			assert.Empty(t, l.links)
		})
	}
}

func TestEngine_SilentIsForwarded(t *testing.T) {
	n := &recordingNotifier{}
	repo := &watch.WatchedRepo{Name: "widgets", Paths: []watch.WatchedPath{{Path: "foo/"}}}

	_, err := NewEngine(&memoryLedger{}, n, true).AlertIfWatchedChanges(context.Background(), repo, file("foo/x.py"), prLink, "", diff.SideSource)
	require.NoError(t, err)
	require.Len(t, n.alerts, 1)
	assert.True(t, n.alerts[0].Silent)
}

func TestEngine_NotifierFailureStillRecords(t *testing.T) {
	l := &memoryLedger{}
	n := &recordingNotifier{err: errors.New("display unavailable")}
	repo := &watch.WatchedRepo{Name: "widgets", Paths: []watch.WatchedPath{{Path: "foo/"}}}

	got, err := NewEngine(l, n, false).AlertIfWatchedChanges(context.Background(), repo, file("foo/x.py"), prLink, "", diff.SideSource)
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, []string{prLink}, l.links)
}

func TestEngine_LedgerErrors(t *testing.T) {
	repo := &watch.WatchedRepo{Name: "widgets", Paths: []watch.WatchedPath{{Path: "foo/"}}}

	t.Run("read", func(t *testing.T) {
		n := &recordingNotifier{}
		_, err := NewEngine(&memoryLedger{readErr: errors.New("io")}, n, false).AlertIfWatchedChanges(context.Background(), repo, file("foo/x.py"), prLink, "", diff.SideSource)
		require.Error(t, err)
		assert.Empty(t, n.alerts)
	})

	t.Run("write", func(t *testing.T) {
		n := &recordingNotifier{}
		_, err := NewEngine(&memoryLedger{markErr: errors.New("disk full")}, n, false).AlertIfWatchedChanges(context.Background(), repo, file("foo/x.py"), prLink, "", diff.SideSource)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.Len(t, n.alerts, 1)
	})
}

func TestEngine_RenameOutOfWatchedDirectory(t *testing.T) {
	repo := &watch.WatchedRepo{Name: "widgets", Paths: []watch.WatchedPath{{Path: "secret/"}}}
	f := diff.PatchedFile{
		SourcePath: "secret/key.go",
		TargetPath: "public/key.go",
		Hunks:      []diff.Hunk{{SourceStart: 1, SourceLength: 2, TargetStart: 1, TargetLength: 3}},
	}

	tests := []struct {
		name string
		side diff.Side
		want bool
	}{
		{name: "source side sees the old path", side: diff.SideSource, want: true},
		{name: "target side sees only the new path", side: diff.SideTarget, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recordingNotifier{}
			got, err := NewEngine(&memoryLedger{}, n, false).AlertIfWatchedChanges(context.Background(), repo, f, prLink, "", tt.side)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.want {
				require.Len(t, n.alerts, 1)
				assert.Equal(t, "secret/key.go", n.alerts[0].File)
			}
		})
	}
}

func TestEngine_RegexResultFollowsDiff(t *testing.T) {
	repo := &watch.WatchedRepo{Name: "widgets", Regexes: []string{"DROP TABLE"}}
	n := &recordingNotifier{}
	e := NewEngine(&memoryLedger{}, n, false)
	ctx := context.Background()

	clean := "+SELECT 1;"
	for _, side := range []diff.Side{diff.SideSource, diff.SideTarget} {
		got, err := e.AlertIfWatchedChanges(ctx, repo, file("a.sql"), prLink, clean, side)
		require.NoError(t, err)
		assert.False(t, got)
	}
	assert.Equal(t, regexHit{blob: clean, hit: false}, e.regexHits[repo])

	got, err := e.AlertIfWatchedChanges(ctx, repo, file("a.sql"), "https://github.com/octo/widgets/pull/8", "+DROP TABLE users;", diff.SideSource)
	require.NoError(t, err)
	assert.True(t, got)
	assert.True(t, e.regexHits[repo].hit)
	assert.Len(t, n.alerts, 1)
}
