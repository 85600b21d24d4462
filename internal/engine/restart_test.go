package engine

import (
	"testing"
	"time"

	"github.com/vigil-dev/vigil/internal/config"
)

func TestDeriveRestartPolicyDefaults(t *testing.T) {
	pol := deriveRestartPolicy(nil)
	if pol.auto {
		t.Fatalf("nil policy should not enable automatic restarts")
	}
	if pol.maxRetries != -1 {
		t.Fatalf("maxRetries = %d, want -1 (unlimited)", pol.maxRetries)
	}
	if pol.base != defaultBackoffBase || pol.factor != defaultBackoffFactor {
		t.Fatalf("backoff = %v x%v, want defaults %v x%v", pol.base, pol.factor, defaultBackoffBase, defaultBackoffFactor)
	}
}

func TestDeriveRestartPolicyNormalization(t *testing.T) {
	neg := -3
	pol := deriveRestartPolicy(&config.RestartPolicy{
		Auto:       true,
		MaxRetries: &neg,
		Backoff:    &config.BackoffSpec{Factor: -1},
	})
	if !pol.auto {
		t.Fatalf("auto flag not carried over")
	}
	if pol.maxRetries != -1 {
		t.Fatalf("negative maxRetries = %d, want -1", pol.maxRetries)
	}
	if pol.base != defaultBackoffBase || pol.factor != defaultBackoffFactor {
		t.Fatalf("non-positive backoff should fall back to defaults, got %v x%v", pol.base, pol.factor)
	}

	zero := 0
	pol = deriveRestartPolicy(&config.RestartPolicy{Auto: true, MaxRetries: &zero})
	if pol.maxRetries != 0 {
		t.Fatalf("maxRetries = %d, want 0", pol.maxRetries)
	}
	if !pol.exhausted(0) {
		t.Fatalf("a zero budget should be exhausted before the first restart")
	}
}

func TestBackoffDelayExactProgression(t *testing.T) {
	pol := restartPolicy{base: 2 * time.Second, factor: 1.5}
	want := []time.Duration{
		2 * time.Second,
		3 * time.Second,
		4500 * time.Millisecond,
		6750 * time.Millisecond,
	}
	for i, w := range want {
		if got := pol.delay(i + 1); got != w {
			t.Fatalf("delay(%d) = %v, want %v", i+1, got, w)
		}
	}
	if got := pol.delay(0); got != want[0] {
		t.Fatalf("delay clamps attempts below one, got %v", got)
	}
}

func TestRestartPolicyExhausted(t *testing.T) {
	limited := restartPolicy{maxRetries: 2}
	if limited.exhausted(1) {
		t.Fatalf("budget of 2 exhausted after 1 restart")
	}
	if !limited.exhausted(2) {
		t.Fatalf("budget of 2 not exhausted after 2 restarts")
	}

	unlimited := restartPolicy{maxRetries: -1}
	if unlimited.exhausted(1 << 20) {
		t.Fatalf("unlimited budget reported exhausted")
	}
}
