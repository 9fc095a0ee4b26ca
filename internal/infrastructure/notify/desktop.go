package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"usbspeed/internal/errors"
)

// DefaultDesktopTimeout bounds one run of the notification helper.
const DefaultDesktopTimeout = 5 * time.Second

// DesktopNotifier posts user notifications through the platform helper:
// osascript on macOS and notify-send elsewhere. Authorization is requested
// once: the helper is located on first use and the verdict is cached for
// the life of the notifier.
type DesktopNotifier struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, path string, args ...string) error
	timeout  time.Duration
	logger   *zap.Logger

	once    sync.Once
	helper  string
	authErr error
}

// DesktopOption configures a DesktopNotifier.
type DesktopOption func(*DesktopNotifier)

// WithPlatform overrides runtime.GOOS.
func WithPlatform(goos string) DesktopOption {
	return func(n *DesktopNotifier) { n.goos = goos }
}

// WithLookPath overrides exec.LookPath.
func WithLookPath(fn func(string) (string, error)) DesktopOption {
	return func(n *DesktopNotifier) { n.lookPath = fn }
}

// WithDesktopTimeout bounds each helper run. Non-positive values keep the
// default.
func WithDesktopTimeout(d time.Duration) DesktopOption {
	return func(n *DesktopNotifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithRunner overrides how the helper is executed.
func WithRunner(fn func(ctx context.Context, path string, args ...string) error) DesktopOption {
	return func(n *DesktopNotifier) { n.run = fn }
}

func NewDesktopNotifier(logger *zap.Logger, opts ...DesktopOption) *DesktopNotifier {
	n := &DesktopNotifier{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run:      runHelper,
		timeout:  DefaultDesktopTimeout,
		logger:   logger.Named("desktop"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *DesktopNotifier) helperName() string {
	if n.goos == "darwin" {
		return "osascript"
	}
	return "notify-send"
}

// Authorize locates the helper. Only the first call does any work.
func (n *DesktopNotifier) Authorize() error {
	n.once.Do(func() {
		name := n.helperName()
		path, err := n.lookPath(name)
		if err != nil {
			n.authErr = errors.NewNotificationDelivery(
				fmt.Sprintf("desktop notifications unavailable: %s not found", name), err)
			n.logger.Warn("Desktop notifications disabled", zap.Error(err))
			return
		}
		n.helper = path
		n.logger.Debug("Desktop notifications enabled", zap.String("helper", path))
	})
	return n.authErr
}

func (n *DesktopNotifier) Notify(ctx context.Context, title, body string) error {
	if err := n.Authorize(); err != nil {
		return err
	}

	var args []string
	if n.goos == "darwin" {
		script := fmt.Sprintf("display notification %s with title %s", appleScriptQuote(body), appleScriptQuote(title))
		args = []string{"-e", script}
	} else {
		args = []string{"--app-name=usbspeed", "--", title, body}
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.run(ctx, n.helper, args...); err != nil {
		return errors.NewNotificationDelivery("desktop notification failed", err)
	}
	return nil
}

func runHelper(ctx context.Context, path string, args ...string) error {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (output: %s)", path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
