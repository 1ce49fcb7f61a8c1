package messages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	// ErrNoThread is wrapped by send errors when no conversation matches a handle.
	ErrNoThread = errors.New("messages: no thread with handle")
	// ErrNotFound is wrapped by lookup errors when no participant matches.
	ErrNotFound = errors.New("messages: no matching participant")
	// ErrEmptyArgument is returned when a required handle, name, text or path is blank.
	ErrEmptyArgument = errors.New("messages: argument must not be empty")
)

// ScriptRunner executes an AppleScript given as lines, passing args as argv.
type ScriptRunner interface {
	Run(ctx context.Context, lines []string, args []string) (string, error)
}

// OSAScript runs scripts through /usr/bin/osascript.
type OSAScript struct{}

// Run implements [ScriptRunner].
func (OSAScript) Run(ctx context.Context, lines []string, args []string) (string, error) {
	cmdArgs := make([]string, 0, len(lines)*2+len(args))
	for _, line := range lines {
		cmdArgs = append(cmdArgs, "-e", line)
	}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.CommandContext(ctx, "/usr/bin/osascript", cmdArgs...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(out.String()))
	}
	return strings.TrimSpace(out.String()), nil
}

// Automator drives Messages.app for sending and handle lookups.
type Automator struct {
	Runner ScriptRunner
	// Participants selects the "participant" scripting class used by macOS 11
	// and later; older releases expose "buddy".
	Participants bool
}

// NewAutomator returns an Automator for the given macOS version using osascript.
func NewAutomator(v Version) *Automator {
	return &Automator{Runner: OSAScript{}, Participants: v.AtLeast(participantsSince)}
}

func (a *Automator) contactClass() string {
	if a.Participants {
		return "participant"
	}
	return "buddy"
}

// Send sends text to the conversation identified by handle.
func (a *Automator) Send(ctx context.Context, handle string, text string) error {
	if strings.TrimSpace(handle) == "" || text == "" {
		return ErrEmptyArgument
	}
	return a.send(ctx, handle, text, false)
}

// SendFile sends the file at path to the conversation identified by handle.
func (a *Automator) SendFile(ctx context.Context, handle string, path string) error {
	if strings.TrimSpace(handle) == "" || strings.TrimSpace(path) == "" {
		return ErrEmptyArgument
	}
	return a.send(ctx, handle, path, true)
}

type sendTarget struct {
	name string
	expr string
}

// send tries each target in order and stops at the first that accepts the
// message: the participant or buddy with this handle, then the iMessage chat
// whose id is derived from it.
func (a *Automator) send(ctx context.Context, handle string, payload string, isFile bool) error {
	targets := []sendTarget{
		{name: a.contactClass(), expr: fmt.Sprintf("first %s whose handle is targetHandle", a.contactClass())},
		{name: "chat", expr: `chat id ("iMessage;+;" & targetHandle)`},
	}

	message := "payload"
	if isFile {
		message = "(POSIX file payload)"
	}

	var lastErr error
	for _, target := range targets {
		script := []string{
			`on run argv`,
			`set targetHandle to item 1 of argv`,
			`set payload to item 2 of argv`,
			`tell application "Messages"`,
			`set target to ` + target.expr,
			`send ` + message + ` to target`,
			`end tell`,
			`end run`,
		}
		_, err := a.Runner.Run(ctx, script, []string{handle, payload})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = fmt.Errorf("%s: %w", target.name, err)
	}
	return fmt.Errorf("%w %q: %w", ErrNoThread, handle, lastErr)
}

// HandleForName returns the handle of the first contact with the given name.
func (a *Automator) HandleForName(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrEmptyArgument
	}
	return a.lookup(ctx, "handle", "name", name)
}

// NameForHandle returns the display name of the contact with the given handle.
func (a *Automator) NameForHandle(ctx context.Context, handle string) (string, error) {
	if strings.TrimSpace(handle) == "" {
		return "", ErrEmptyArgument
	}
	return a.lookup(ctx, "name", "handle", handle)
}

func (a *Automator) lookup(ctx context.Context, property string, by string, value string) (string, error) {
	class := a.contactClass()
	script := []string{
		`on run argv`,
		`set needle to item 1 of argv`,
		`tell application "Messages"`,
		fmt.Sprintf(`return %s of first %s whose %s is needle`, property, class, by),
		`end tell`,
		`end run`,
	}
	out, err := a.Runner.Run(ctx, script, []string{value})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if isMissingObject(err) {
			return "", fmt.Errorf("%w: %s with %s %q: %w", ErrNotFound, class, by, value, err)
		}
		return "", fmt.Errorf("messages: looking up %s by %s failed: %w", class, by, err)
	}
	out = strings.TrimSpace(out)
	if out == "" || out == "missing value" {
		return "", fmt.Errorf("%w: %s with %s %q", ErrNotFound, class, by, value)
	}
	return out, nil
}

// isMissingObject reports whether err is AppleScript's "Can't get" error
// (-1728), raised when "first ... whose" matches nothing.
func isMissingObject(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "(-1728)") ||
		strings.Contains(msg, "Can't get") ||
		strings.Contains(msg, "Can’t get")
}
