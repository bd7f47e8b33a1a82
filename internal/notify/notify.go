// Package notify delivers alerts about matching pull requests.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	clog "github.com/charmbracelet/log"
	"github.com/gen2brain/beeep"
)

// DefaultTitle is the notification title.
const DefaultTitle = "Github Watcher"

// Alert describes a pull request change that overlaps a watch.
type Alert struct {
	File     string
	Start    int
	End      int
	HasRange bool // false for directory, regex, and whole-file matches
	Link     string
	Silent   bool // suppress audible output; visual notification still fires
}

// RangeText renders the affected range as "(start, end)", or "" when the
// alert has no range.
func (a Alert) RangeText() string {
	if !a.HasRange {
		return ""
	}
	return fmt.Sprintf("(%d, %d)", a.Start, a.End)
}

// Message is the human-readable alert text.
func (a Alert) Message() string {
	return strings.TrimSpace(fmt.Sprintf("Found a PR affecting %s %s", a.File, a.RangeText()))
}

// Notifier delivers an alert. Callers treat delivery as fire-and-forget and
// only log a returned error.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// Log writes alerts to the structured log.
type Log struct {
	log *clog.Logger
}

var _ Notifier = &Log{}

// NewLog returns a Notifier that logs at info level.
func NewLog() *Log {
	return &Log{log: clog.Default().WithPrefix("alert")}
}

func (l *Log) Notify(_ context.Context, alert Alert) error {
	l.log.Info(alert.Message(), "link", alert.Link)
	return nil
}

// Desktop shows a desktop notification and, unless the alert is silent,
// plays an audible cue: speech on macOS, a beep elsewhere.
type Desktop struct {
	beep  func() error
	goos  string
	speak func(ctx context.Context, msg string) error
	title string
	toast func(title, msg string) error
}

var _ Notifier = &Desktop{}

// NewDesktop returns a Desktop notifier for the running platform.
func NewDesktop(title string) *Desktop {
	if title == "" {
		title = DefaultTitle
	}
	beeep.AppName = title
	return &Desktop{
		beep:  func() error { return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration) },
		goos:  runtime.GOOS,
		speak: say,
		title: title,
		toast: func(title, msg string) error { return beeep.Notify(title, msg, "") },
	}
}

func say(ctx context.Context, msg string) error {
	return exec.CommandContext(ctx, "say", msg).Run()
}

func (d *Desktop) Notify(ctx context.Context, alert Alert) error {
	msg := alert.Message()
	var errs []error
	if !alert.Silent {
		if d.goos == "darwin" {
			if err := d.speak(ctx, msg); err != nil {
				errs = append(errs, fmt.Errorf("failed to speak alert: %w", err))
			}
		} else if err := d.beep(); err != nil {
			errs = append(errs, fmt.Errorf("failed to beep: %w", err))
		}
	}
	if err := d.toast(d.title, msg+"\n"+alert.Link); err != nil {
		errs = append(errs, fmt.Errorf("failed to show notification: %w", err))
	}
	return errors.Join(errs...)
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

var _ Notifier = Multi{}

func (m Multi) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ForPlatform picks the notifiers for this process: alerts are always
// logged, and shown on the desktop when enabled on a supported platform.
func ForPlatform(goos string, desktop bool, title string) Notifier {
	notifiers := Multi{NewLog()}
	if desktop && supportsDesktop(goos) {
		notifiers = append(notifiers, NewDesktop(title))
	}
	return notifiers
}

func supportsDesktop(goos string) bool {
	switch goos {
	case "darwin", "linux", "windows", "freebsd", "netbsd", "openbsd":
		return true
	}
	return false
}
