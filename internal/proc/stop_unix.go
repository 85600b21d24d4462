//go:build !windows

package proc

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"
)

// termGrace is how long a child gets to exit after SIGTERM before SIGKILL.
const termGrace = 5 * time.Second

// Stop asks the child's process group to exit and escalates to SIGKILL after
// the grace period. It returns once the child has been reaped; the exit state
// stays available on the handle.
func (h *Handle) Stop(ctx context.Context) error {
	return h.terminate(ctx, false)
}

// Kill terminates the child's process group immediately.
func (h *Handle) Kill(ctx context.Context) error {
	return h.terminate(ctx, true)
}

func (h *Handle) terminate(ctx context.Context, force bool) error {
	if h.cmd.Process == nil {
		return nil
	}

	if !force {
		if err := syscall.Kill(-h.cmd.Process.Pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("signal process group %s: %w", h.name, err)
		}
		select {
		case <-h.done:
			return nil
		case <-time.After(termGrace):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := syscall.Kill(-h.cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill process group %s: %w", h.name, err)
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
