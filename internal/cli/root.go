package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigil-dev/vigil/internal/cliutil"
	"github.com/vigil-dev/vigil/internal/config"
	"github.com/vigil-dev/vigil/internal/engine"
	"github.com/vigil-dev/vigil/internal/logbus"
)

// shutdownTimeout bounds the stop sequence that runs once the command
// context is cancelled. It must outlast the per-process terminate grace
// window so force kills still get reaped.
const shutdownTimeout = 10 * time.Second

// defaultLogBacklog is how many log records the serve command retains for
// the control API logs endpoint.
const defaultLogBacklog = 1000

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	var manifestFile string

	root := &cobra.Command{
		Use:   "vigil",
		Short: "Local process supervisor",
	}

	root.PersistentFlags().
		StringVarP(&manifestFile, "file", "f", "vigil.yaml", "Path to the service manifest")

	ctx := &context{manifestFile: &manifestFile}
	root.AddCommand(newUpCmd(ctx))
	root.AddCommand(newTuiCmd(ctx))
	root.AddCommand(newServeCmd(ctx))
	root.AddCommand(newCheckCmd(ctx))
	root.AddCommand(newStatusCmd(ctx))
	root.AddCommand(newStartCmd(ctx))
	root.AddCommand(newStopCmd(ctx))
	root.AddCommand(newReloadCmd(ctx))
	root.AddCommand(newLogsCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type context struct {
	manifestFile *string

	mu    sync.RWMutex
	group *engine.Group
}

func (c *context) loadManifest() (*config.File, error) {
	return config.Load(*c.manifestFile)
}

// buildGroup loads the manifest and assembles a supervision group around a
// fresh bus. The caller owns the group's lifetime.
func (c *context) buildGroup() (*engine.Group, error) {
	file, err := c.loadManifest()
	if err != nil {
		return nil, err
	}
	return engine.NewGroup(file.Services, file.StartInterval.Duration, logbus.New())
}

func (c *context) setGroup(g *engine.Group) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.group = g
}

func (c *context) clearGroup(g *engine.Group) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.group == g {
		c.group = nil
	}
}

func (c *context) currentGroup() *engine.Group {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.group
}

// followBus drains bus into sink whenever new events arrive. On cancellation
// it performs one final drain so lines published during shutdown still reach
// the sink before the follower exits.
func followBus(ctx stdcontext.Context, bus *logbus.Bus, sink func(logbus.Event)) {
	flush := func() {
		for _, evt := range bus.Drain() {
			sink(evt)
		}
	}
	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-bus.Updated():
			flush()
		}
	}
}

// logStream retains the most recent log records for the control API logs
// endpoint. Appends trim the backlog to capacity, oldest first.
type logStream struct {
	mu       sync.Mutex
	capacity int
	backlog  []cliutil.LogRecord
}

func newLogStream(capacity int) *logStream {
	if capacity <= 0 {
		capacity = defaultLogBacklog
	}
	return &logStream{capacity: capacity}
}

func (s *logStream) Append(record cliutil.LogRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backlog = append(s.backlog, record)
	if len(s.backlog) > s.capacity {
		trim := len(s.backlog) - s.capacity
		s.backlog = append([]cliutil.LogRecord(nil), s.backlog[trim:]...)
	}
}

// Tail returns a copy of the last n records. Non-positive n, or n larger
// than the backlog, returns everything retained.
func (s *logStream) Tail(n int) []cliutil.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.backlog) {
		n = len(s.backlog)
	}
	out := make([]cliutil.LogRecord, n)
	copy(out, s.backlog[len(s.backlog)-n:])
	return out
}
