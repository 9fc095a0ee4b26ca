// Package profiler provides topology sources: the system profiler command
// and a file for hosts or tests without one.
package profiler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"usbspeed/internal/errors"
)

const (
	stderrLimit = 8 << 10 // 8 KiB
	waitDelay   = time.Second
)

// DefaultCommand and DefaultArgs query both device families as JSON.
var (
	DefaultCommand = "/usr/sbin/system_profiler"
	DefaultArgs    = []string{"SPUSBHostDataType", "SPThunderboltDataType", "-json"}
)

// CommandSource runs an external command and returns its stdout.
type CommandSource struct {
	path   string
	args   []string
	logger *zap.Logger
}

// NewCommandSource creates a source for path and args. An empty path uses
// DefaultCommand with DefaultArgs.
func NewCommandSource(path string, args []string, logger *zap.Logger) *CommandSource {
	if path == "" {
		path, args = DefaultCommand, DefaultArgs
	}
	return &CommandSource{
		path:   path,
		args:   append([]string(nil), args...),
		logger: logger.Named("profiler"),
	}
}

// Query runs the command once. The deadline comes from ctx. Every failure,
// including empty output, is a query source error carrying a trimmed stderr
// snippet.
func (s *CommandSource) Query(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.path, s.args...)
	cmd.WaitDelay = waitDelay

	s.logger.Debug("Executing topology command", zap.String("command", cmd.String()))

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		snippet := stderr.String()
		if len(snippet) > stderrLimit {
			snippet = snippet[:stderrLimit] + "… (truncated)"
		}
		// Report the context error so callers see the deadline, not "signal: killed".
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, errors.NewQuerySource(
			fmt.Sprintf("%s (stderr: %s)", cmd, strings.TrimSpace(snippet)), err)
	}

	if len(bytes.TrimSpace(out)) == 0 {
		return nil, errors.NewQuerySource(fmt.Sprintf("%s produced no output", cmd), nil)
	}
	return out, nil
}

// String returns the command line.
func (s *CommandSource) String() string {
	return strings.Join(append([]string{s.path}, s.args...), " ")
}
