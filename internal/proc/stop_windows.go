//go:build windows

package proc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

const termGrace = 5 * time.Second

// Stop interrupts the child and escalates to a hard kill after the grace
// period. Only the top-level process is signalled on Windows.
func (h *Handle) Stop(ctx context.Context) error {
	if h.cmd.Process == nil {
		return nil
	}
	_ = h.cmd.Process.Signal(os.Interrupt)

	select {
	case <-h.done:
		return nil
	case <-time.After(termGrace):
	case <-ctx.Done():
		return ctx.Err()
	}
	return h.Kill(ctx)
}

// Kill terminates the child immediately.
func (h *Handle) Kill(ctx context.Context) error {
	if h.cmd.Process == nil {
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill process %s: %w", h.name, err)
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
