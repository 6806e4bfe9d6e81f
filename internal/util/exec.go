package util

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds external commands when no timeout is given.
const DefaultCommandTimeout = 30 * time.Second

// CommandRunner runs an external program and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// NewCommandRunner returns a runner that kills the program after timeout.
// A non-positive timeout selects DefaultCommandTimeout.
func NewCommandRunner(timeout time.Duration) CommandRunner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // G204: network configuration requires system commands
		hideWindow(cmd)
		output, err := cmd.CombinedOutput()
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return output, fmt.Errorf("%s timed out after %s", name, timeout)
			}
			if msg := strings.TrimSpace(string(output)); msg != "" {
				return output, fmt.Errorf("%s failed: %w: %s", name, err, msg)
			}
			return output, fmt.Errorf("%s failed: %w", name, err)
		}
		return output, nil
	}
}
