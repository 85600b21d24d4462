package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vigil-dev/vigil/internal/config"
	"github.com/vigil-dev/vigil/internal/logbus"
	"github.com/vigil-dev/vigil/internal/metrics"
	"github.com/vigil-dev/vigil/internal/probe"
	"github.com/vigil-dev/vigil/internal/proc"
)

// killTimeout bounds the terminate-and-reap wait after a failed start.
const killTimeout = 10 * time.Second

// Supervisor manages the lifecycle of a single service: it spawns the child,
// gates readiness on the configured probe, forwards output to the bus, and
// schedules restarts under the service's restart policy. All methods are safe
// for concurrent use.
type Supervisor struct {
	name     string
	spec     *config.ServiceSpec
	policy   restartPolicy
	prober   probe.Prober
	bus      *logbus.Bus
	groupCtx context.Context

	sleep func(context.Context, time.Duration) error

	mu             sync.Mutex
	status         Status
	handle         *proc.Handle
	restarts       int
	startedAt      time.Time
	stopRequested  bool
	starting       bool
	restartPending bool
	gaveUp         bool
	startDone      chan struct{}
	abortWait      context.CancelFunc
	abortRestart   context.CancelFunc
}

func newSupervisor(spec *config.ServiceSpec, bus *logbus.Bus, groupCtx context.Context) (*Supervisor, error) {
	if groupCtx == nil {
		groupCtx = context.Background()
	}
	prober, err := probe.New(spec.Health)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", spec.Name, err)
	}
	return &Supervisor{
		name:     spec.Name,
		spec:     spec,
		policy:   deriveRestartPolicy(spec.Restart),
		prober:   prober,
		bus:      bus,
		groupCtx: groupCtx,
		sleep:    sleepWithContext,
		status:   StatusIdle,
	}, nil
}

// Name returns the service name.
func (s *Supervisor) Name() string {
	return s.name
}

// Info returns a point-in-time snapshot. PID and StartedAt are only reported
// while a child is live.
func (s *Supervisor) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{Name: s.name, Status: s.status, Restarts: s.restarts}
	if s.handle != nil && s.handle.Alive() {
		info.PID = s.handle.PID()
		info.StartedAt = s.startedAt
	}
	return info
}

// busy reports whether the supervisor has a live child or a start in flight.
func (s *Supervisor) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.starting {
		return true
	}
	return s.handle != nil && s.handle.Alive()
}

// Start runs one complete start sequence: required-file check, spawn,
// readiness wait. It blocks until the service is ready or the attempt has
// failed, and returns nil for the logged no-op cases (child already live,
// start already in flight). Failures consult the restart policy before
// returning.
func (s *Supervisor) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if h := s.handle; h != nil && h.Alive() {
		pid := h.PID()
		s.mu.Unlock()
		s.bus.Systemf(s.name, "start ignored: already running (pid %d)", pid)
		return nil
	}
	if s.starting {
		s.mu.Unlock()
		s.bus.Systemf(s.name, "start ignored: start already in progress")
		return nil
	}
	s.starting = true
	s.stopRequested = false
	s.gaveUp = false
	s.status = StatusStarting
	s.startDone = make(chan struct{})
	waitCtx, cancelWait := context.WithCancel(ctx)
	s.abortWait = cancelWait
	s.mu.Unlock()

	defer func() {
		cancelWait()
		s.mu.Lock()
		s.starting = false
		s.abortWait = nil
		close(s.startDone)
		s.startDone = nil
		s.mu.Unlock()
	}()

	s.bus.Systemf(s.name, "starting")

	if missing := s.missingFiles(); len(missing) > 0 {
		err := fmt.Errorf("%w: %s", ErrMissingFiles, strings.Join(missing, ", "))
		s.failStart(err)
		return err
	}

	handle, err := proc.Start(s.name, proc.Spec{
		Command: s.spec.Command,
		Dir:     s.spec.ResolvedWorkdir,
		Env:     s.spec.Env,
	})
	if err != nil {
		err = fmt.Errorf("launch: %w", err)
		s.failStart(err)
		return err
	}

	s.mu.Lock()
	if s.stopRequested {
		s.mu.Unlock()
		// Stop raced the spawn; do not adopt the child.
		killCtx, cancel := context.WithTimeout(context.Background(), killTimeout)
		_ = handle.Kill(killCtx)
		cancel()
		s.bus.Systemf(s.name, "start aborted")
		return context.Canceled
	}
	s.handle = handle
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.bus.Systemf(s.name, "started pid %d", handle.PID())
	go s.drain(handle)

	waitBegan := time.Now()
	err = probe.Wait(waitCtx, s.prober, s.healthTimeout(), handle.Alive)
	metrics.ObserveHealthWait(s.name, time.Since(waitBegan))

	if err == nil {
		s.mu.Lock()
		if s.status == StatusStarting {
			s.status = StatusRunning
		}
		ready := s.status == StatusRunning
		s.mu.Unlock()
		if ready {
			s.bus.Systemf(s.name, "ready")
			metrics.SetServiceUp(s.name, true)
		}
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.bus.Systemf(s.name, "start aborted")
		return err
	}

	s.mu.Lock()
	if s.status == StatusStarting {
		s.status = StatusFailed
	}
	s.mu.Unlock()
	s.bus.Systemf(s.name, "readiness failed: %v", err)
	metrics.SetServiceUp(s.name, false)

	stopCtx, cancel := context.WithTimeout(context.Background(), killTimeout)
	_ = handle.Stop(stopCtx)
	cancel()

	s.maybeScheduleRestart()
	return err
}

// failStart records a failure that happened before a child was adopted.
func (s *Supervisor) failStart(err error) {
	s.mu.Lock()
	if s.status == StatusStarting {
		s.status = StatusFailed
	}
	s.mu.Unlock()
	s.bus.Systemf(s.name, "start failed: %v", err)
	metrics.SetServiceUp(s.name, false)
	s.maybeScheduleRestart()
}

// Stop requests a deliberate shutdown: it suppresses pending and future
// restarts, aborts an in-flight readiness wait, terminates a live child with
// escalation and waits for it to be reaped. Safe to call in any state.
func (s *Supervisor) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.stopRequested = true
	if s.abortWait != nil {
		s.abortWait()
	}
	if s.abortRestart != nil {
		s.abortRestart()
	}
	h := s.handle
	if s.status != StatusFailed && s.status != StatusExited {
		s.status = StatusStopped
	}
	s.mu.Unlock()

	var stopErr error
	if h != nil && h.Alive() {
		s.bus.Systemf(s.name, "stopping (pid %d)", h.PID())
		stopErr = h.Stop(ctx)
		s.bus.Systemf(s.name, "stopped")
	} else {
		s.bus.Systemf(s.name, "stop requested (no live process)")
	}
	metrics.SetServiceUp(s.name, false)
	return stopErr
}

// drain copies child output onto the bus, then records the exit. The status
// transition and restart scheduling only apply while this handle is still the
// supervisor's current child.
func (s *Supervisor) drain(h *proc.Handle) {
	for line := range h.Lines() {
		s.bus.Publish(logbus.Event{Service: s.name, Source: line.Source, Message: line.Text})
	}
	<-h.Done()

	if err := h.ExitErr(); err != nil {
		s.bus.Systemf(s.name, "process exited: %v", err)
	} else {
		s.bus.Systemf(s.name, "process exited with status 0")
	}

	s.mu.Lock()
	current := s.handle == h
	if current {
		s.handle = nil
		if s.status != StatusStopped && s.status != StatusFailed {
			s.status = StatusExited
		}
	}
	s.mu.Unlock()

	if current {
		metrics.SetServiceUp(s.name, false)
		s.maybeScheduleRestart()
	}
}

// maybeScheduleRestart is the single scheduling point for automatic
// restarts. The pending flag makes it idempotent per failure cycle; the
// gaveUp latch keeps the exhaustion message to one line per episode.
func (s *Supervisor) maybeScheduleRestart() {
	s.mu.Lock()
	if !s.policy.auto || s.stopRequested || s.groupCtx.Err() != nil || s.restartPending {
		s.mu.Unlock()
		return
	}
	if s.policy.exhausted(s.restarts) {
		if s.gaveUp {
			s.mu.Unlock()
			return
		}
		s.gaveUp = true
		s.mu.Unlock()
		s.bus.Systemf(s.name, "restart limit reached (%d), giving up", s.policy.maxRetries)
		return
	}
	s.restarts++
	attempt := s.restarts
	s.restartPending = true
	delayCtx, cancel := context.WithCancel(s.groupCtx)
	s.abortRestart = cancel
	s.mu.Unlock()

	delay := s.policy.delay(attempt)
	if s.policy.maxRetries >= 0 {
		s.bus.Systemf(s.name, "restart %d/%d in %s", attempt, s.policy.maxRetries, delay)
	} else {
		s.bus.Systemf(s.name, "restart %d in %s", attempt, delay)
	}
	metrics.IncServiceRestarts(s.name)

	go s.runRestartTimer(delayCtx, cancel, delay)
}

func (s *Supervisor) runRestartTimer(delayCtx context.Context, cancel context.CancelFunc, delay time.Duration) {
	defer cancel()

	clearPending := func() {
		s.mu.Lock()
		s.restartPending = false
		s.abortRestart = nil
		s.mu.Unlock()
	}

	if err := s.sleep(delayCtx, delay); err != nil {
		clearPending()
		return
	}

	// Let an in-flight start sequence finish before relaunching, otherwise
	// the relaunch would be swallowed by the in-progress guard.
	s.mu.Lock()
	startDone := s.startDone
	s.mu.Unlock()
	if startDone != nil {
		select {
		case <-startDone:
		case <-delayCtx.Done():
			clearPending()
			return
		}
	}

	s.mu.Lock()
	s.restartPending = false
	s.abortRestart = nil
	skip := s.stopRequested || (s.handle != nil && s.handle.Alive())
	s.mu.Unlock()
	if skip || delayCtx.Err() != nil {
		return
	}
	_ = s.Start(s.groupCtx)
}

func (s *Supervisor) missingFiles() []string {
	var missing []string
	for _, rel := range s.spec.RequiredFiles {
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.spec.ResolvedWorkdir, rel)
		}
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, rel)
		}
	}
	return missing
}

func (s *Supervisor) healthTimeout() time.Duration {
	if s.spec.Health != nil {
		return s.spec.Health.Timeout.Duration
	}
	return 0
}
