package engine

import (
	"context"
	"math"
	"time"

	"github.com/vigil-dev/vigil/internal/config"
)

const (
	defaultBackoffBase   = time.Second
	defaultBackoffFactor = 2.0
)

// restartPolicy is the normalized form of a manifest restart policy.
type restartPolicy struct {
	auto       bool
	maxRetries int
	base       time.Duration
	factor     float64
}

// deriveRestartPolicy normalizes the manifest policy: a nil policy disables
// automatic restarts, a nil MaxRetries means unlimited, and non-positive
// backoff parameters fall back to the defaults.
func deriveRestartPolicy(spec *config.RestartPolicy) restartPolicy {
	pol := restartPolicy{maxRetries: -1, base: defaultBackoffBase, factor: defaultBackoffFactor}
	if spec == nil {
		return pol
	}
	pol.auto = spec.Auto
	if spec.MaxRetries != nil {
		pol.maxRetries = *spec.MaxRetries
		if pol.maxRetries < 0 {
			pol.maxRetries = -1
		}
	}
	if spec.Backoff != nil {
		if spec.Backoff.Base.Duration > 0 {
			pol.base = spec.Backoff.Base.Duration
		}
		if spec.Backoff.Factor > 0 {
			pol.factor = spec.Backoff.Factor
		}
	}
	return pol
}

// delay returns the backoff preceding restart attempt k, counted from 1:
// base for the first restart, then base multiplied by factor for each
// further attempt. The progression is exact, with no jitter and no ceiling.
func (p restartPolicy) delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(p.base) * math.Pow(p.factor, float64(attempt-1)))
}

// exhausted reports whether the retry budget forbids scheduling another
// restart after the given number already used.
func (p restartPolicy) exhausted(restarts int) bool {
	return p.maxRetries >= 0 && restarts >= p.maxRetries
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
