package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vigil-dev/vigil/internal/config"
	"github.com/vigil-dev/vigil/internal/logbus"
	"github.com/vigil-dev/vigil/internal/metrics"
)

// groupService tags group-level system events on the bus.
const groupService = "vigil"

// Group supervises an ordered set of services. The order follows the manifest
// and drives StartAll sequencing. A Group owns a shutdown context that every
// supervisor's restart timer and health wait is bound to; Shutdown cancels it.
type Group struct {
	bus    *logbus.Bus
	ctx    context.Context
	cancel context.CancelFunc

	sleep func(context.Context, time.Duration) error

	mu          sync.Mutex
	interval    time.Duration
	sups        []*Supervisor
	byName      map[string]*Supervisor
	startingAll bool
}

// NewGroup builds one supervisor per spec in manifest order. Specs are cloned
// so later caller mutation cannot reach the running group.
func NewGroup(specs []*config.ServiceSpec, startInterval time.Duration, bus *logbus.Bus) (*Group, error) {
	if bus == nil {
		bus = logbus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	g := &Group{
		bus:      bus,
		ctx:      ctx,
		cancel:   cancel,
		sleep:    sleepWithContext,
		interval: startInterval,
		byName:   make(map[string]*Supervisor, len(specs)),
	}
	sups, byName, err := buildSupervisors(specs, bus, ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	g.sups = sups
	g.byName = byName
	return g, nil
}

func buildSupervisors(specs []*config.ServiceSpec, bus *logbus.Bus, ctx context.Context) ([]*Supervisor, map[string]*Supervisor, error) {
	sups := make([]*Supervisor, 0, len(specs))
	byName := make(map[string]*Supervisor, len(specs))
	for _, spec := range specs {
		sup, err := newSupervisor(spec.Clone(), bus, ctx)
		if err != nil {
			return nil, nil, err
		}
		sups = append(sups, sup)
		byName[sup.Name()] = sup
	}
	return sups, byName, nil
}

// Bus returns the group's log bus.
func (g *Group) Bus() *logbus.Bus {
	return g.bus
}

// Interval returns the configured delay between consecutive StartAll starts.
func (g *Group) Interval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.interval
}

// Supervisors returns the supervisors in manifest order.
func (g *Group) Supervisors() []*Supervisor {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Supervisor, len(g.sups))
	copy(out, g.sups)
	return out
}

// Supervisor returns the named supervisor, or nil if unknown.
func (g *Group) Supervisor(name string) *Supervisor {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.byName[name]
}

// StartAll launches the start sequence on its own goroutine and returns
// immediately. Services start strictly in manifest order; each start waits
// for its readiness outcome, and the configured interval is slept between
// consecutive starts. A second call while a sequence is active is a logged
// no-op. Individual start failures never abort the sequence.
func (g *Group) StartAll() {
	g.mu.Lock()
	if g.startingAll {
		g.mu.Unlock()
		g.bus.Systemf(groupService, "start all ignored: already in progress")
		return
	}
	g.startingAll = true
	sups := make([]*Supervisor, len(g.sups))
	copy(sups, g.sups)
	interval := g.interval
	g.mu.Unlock()

	go g.runStartAll(sups, interval)
}

func (g *Group) runStartAll(sups []*Supervisor, interval time.Duration) {
	defer func() {
		g.mu.Lock()
		g.startingAll = false
		g.mu.Unlock()
	}()

	g.bus.Systemf(groupService, "starting %d services", len(sups))
	for i, sup := range sups {
		if g.ctx.Err() != nil {
			g.bus.Systemf(groupService, "start all aborted: shutting down")
			return
		}
		_ = sup.Start(g.ctx)
		if interval > 0 && i < len(sups)-1 {
			if err := g.sleep(g.ctx, interval); err != nil {
				g.bus.Systemf(groupService, "start all aborted: shutting down")
				return
			}
		}
	}
	g.bus.Systemf(groupService, "start sequence complete")
}

// StopAll stops every supervisor concurrently and waits for all of them.
// Stops are independent: one service failing to stop does not cut short
// another's grace window.
func (g *Group) StopAll(ctx context.Context) error {
	var eg errgroup.Group
	for _, sup := range g.Supervisors() {
		sup := sup
		eg.Go(func() error {
			return sup.Stop(ctx)
		})
	}
	return eg.Wait()
}

// StartService starts the named supervisor and blocks until its readiness
// outcome.
func (g *Group) StartService(ctx context.Context, name string) error {
	sup := g.Supervisor(name)
	if sup == nil {
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	return sup.Start(ctx)
}

// StopService stops the named supervisor.
func (g *Group) StopService(ctx context.Context, name string) error {
	sup := g.Supervisor(name)
	if sup == nil {
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	return sup.Stop(ctx)
}

// Reload replaces the roster with freshly built supervisors. It is rejected
// while any supervisor has a live child or a start is in flight, and while a
// StartAll sequence is active: discarding live supervisors would orphan their
// children and restart timers. On acceptance the old supervisors are
// quiesced, restart counters reset with the new roster, and per-service
// metrics cleared.
func (g *Group) Reload(specs []*config.ServiceSpec, startInterval time.Duration) error {
	g.mu.Lock()
	if g.startingAll {
		g.mu.Unlock()
		return fmt.Errorf("%w: start sequence in progress", ErrReloadBlocked)
	}
	old := make([]*Supervisor, len(g.sups))
	copy(old, g.sups)
	g.mu.Unlock()

	for _, sup := range old {
		if sup.busy() {
			return fmt.Errorf("%w: service %s is running", ErrReloadBlocked, sup.Name())
		}
	}

	sups, byName, err := buildSupervisors(specs, g.bus, g.ctx)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if g.startingAll {
		g.mu.Unlock()
		return fmt.Errorf("%w: start sequence in progress", ErrReloadBlocked)
	}
	g.sups = sups
	g.byName = byName
	g.interval = startInterval
	g.mu.Unlock()

	// Quiesce replaced supervisors so orphaned restart timers cannot fire.
	quiesceCtx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()
	for _, sup := range old {
		_ = sup.Stop(quiesceCtx)
		metrics.ResetService(sup.Name())
	}
	for _, sup := range sups {
		metrics.ResetService(sup.Name())
	}

	g.bus.Systemf(groupService, "reloaded: %d services", len(sups))
	return nil
}

// Shutdown cancels the group context, aborting health waits, restart timers
// and any running start sequence, then stops every supervisor.
func (g *Group) Shutdown(ctx context.Context) error {
	g.cancel()
	return g.StopAll(ctx)
}
