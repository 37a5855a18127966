package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// DesktopNotifier shows events as system notifications. On macOS it shells
// out to osascript, on Linux to notify-send.
type DesktopNotifier struct {
	// run executes the notification command. Defaults to os/exec.
	run func(ctx context.Context, name string, args ...string) error
	// goos overrides runtime.GOOS for platform selection.
	goos string
}

func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{
		run: func(ctx context.Context, name string, args ...string) error {
			out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
			}
			return nil
		},
		goos: runtime.GOOS,
	}
}

func (n *DesktopNotifier) Notify(ctx context.Context, event Event) error {
	switch n.goos {
	case "darwin":
		return n.run(ctx, "osascript", "-e", appleScript(event))
	case "linux":
		return n.run(ctx, "notify-send", event.Title, event.Message)
	default:
		return fmt.Errorf("desktop notifications not supported on %s", n.goos)
	}
}

func appleScript(event Event) string {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`,
		sanitizeAppleScript(event.Message), sanitizeAppleScript(event.Title))
	if event.Subtitle != "" {
		script += fmt.Sprintf(` subtitle "%s"`, sanitizeAppleScript(event.Subtitle))
	}
	script += ` sound name "Glass"`
	return script
}

// sanitizeAppleScript strips characters that would break out of the quoted
// AppleScript string literal.
func sanitizeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, ``)
	return strings.ReplaceAll(s, `"`, `'`)
}
