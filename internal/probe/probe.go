// Package probe decides when a freshly spawned service is ready for traffic.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vigil-dev/vigil/internal/config"
)

// DefaultTimeout bounds a readiness wait when the caller provides none.
const DefaultTimeout = 60 * time.Second

// pollInterval is the cadence between probe attempts after the immediate
// first attempt.
const pollInterval = 500 * time.Millisecond

var (
	// ErrTimeout reports that the overall readiness deadline lapsed before
	// any attempt succeeded.
	ErrTimeout = errors.New("probe: readiness timeout")

	// ErrProcessExited reports that the probed process died while the wait
	// loop was still polling.
	ErrProcessExited = errors.New("probe: process exited before becoming ready")
)

// Prober performs a single readiness attempt.
type Prober interface {
	Probe(ctx context.Context) error
}

// New builds a prober from the manifest health spec. A nil spec yields a nil
// prober, meaning the service counts as ready the moment it is spawned.
func New(spec *config.HealthSpec) (Prober, error) {
	if spec == nil {
		return nil, nil
	}
	switch {
	case spec.Port != nil && spec.HTTP != nil:
		return nil, errors.New("probe: at most one probe type may be configured")
	case spec.Port != nil:
		return newTCPProber(spec.Port), nil
	case spec.HTTP != nil:
		return newHTTPProber(spec.HTTP), nil
	default:
		return nil, nil
	}
}

// Wait blocks until prober succeeds, the process dies, the overall timeout
// lapses, or ctx is cancelled. The first attempt happens immediately; later
// attempts run every pollInterval. A nil prober returns nil at once.
func Wait(ctx context.Context, prober Prober, timeout time.Duration, alive func() bool) error {
	if prober == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		// Cancellation wins over an observed child death so callers can tell
		// an aborted wait apart from a genuine failure.
		if err := ctx.Err(); err != nil {
			return err
		}
		if alive != nil && !alive() {
			return ErrProcessExited
		}
		err := prober.Probe(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, err)
		case <-ticker.C:
		}
	}
}
