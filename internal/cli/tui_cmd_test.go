package cli

import (
	stdcontext "context"
	"io"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigil-dev/vigil/internal/engine"
	"github.com/vigil-dev/vigil/internal/tui"
)

type stubDashboard struct {
	group    *engine.Group
	stopOnce sync.Once
	done     chan struct{}
}

func newStubDashboard(group *engine.Group) *stubDashboard {
	return &stubDashboard{group: group, done: make(chan struct{})}
}

func (s *stubDashboard) Run(ctx stdcontext.Context) error {
	select {
	case <-ctx.Done():
	case <-s.done:
	}
	s.Stop()
	return nil
}

func (s *stubDashboard) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func TestTuiCommandRequiresTerminal(t *testing.T) {
	_, _, err := runCommand(t, "tui")
	if err == nil || !strings.Contains(err.Error(), "interactive terminal") {
		t.Fatalf("expected terminal requirement error, got %v", err)
	}
}

func TestRunDashboardLifecycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	path := writeManifestFile(t, `services:
  - name: web
    command: ["/bin/sh", "-c", "exec sleep 30"]
`)

	var mu sync.Mutex
	var stub *stubDashboard
	origNewDashboard := newDashboard
	t.Cleanup(func() {
		newDashboard = origNewDashboard
	})
	newDashboard = func(group *engine.Group, opts ...tui.Option) dashboard {
		mu.Lock()
		defer mu.Unlock()
		stub = newStubDashboard(group)
		return stub
	}

	ctx := &context{manifestFile: &path}
	cmd := &cobra.Command{Use: "tui"}
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	runCtx, cancel := stdcontext.WithCancel(stdcontext.Background())
	defer cancel()
	cmd.SetContext(runCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runDashboard(cmd, ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	var group *engine.Group
	for {
		mu.Lock()
		if stub != nil {
			group = stub.group
		}
		mu.Unlock()
		if group != nil {
			if sup := group.Supervisor("web"); sup != nil && sup.Info().Status == engine.StatusRunning {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for service to start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("runDashboard returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("timeout waiting for dashboard to exit")
	}

	if sup := group.Supervisor("web"); sup == nil || sup.Info().Status != engine.StatusStopped {
		t.Fatalf("expected web stopped after shutdown")
	}
}
