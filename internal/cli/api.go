package cli

import (
	stdcontext "context"
	"fmt"
	"time"

	"github.com/vigil-dev/vigil/internal/api"
	"github.com/vigil-dev/vigil/internal/engine"
)

// ControlAPI exposes supervision operations for the HTTP control plane.
type ControlAPI struct {
	ctx *context
}

// NewControlAPI constructs a ControlAPI wrapper around the shared CLI context.
func NewControlAPI(ctx *context) *ControlAPI {
	if ctx == nil {
		return nil
	}
	return &ControlAPI{ctx: ctx}
}

func (apiCtrl *ControlAPI) group() (*engine.Group, error) {
	if apiCtrl == nil || apiCtrl.ctx == nil {
		return nil, api.ErrGroupNotRunning
	}
	group := apiCtrl.ctx.currentGroup()
	if group == nil {
		return nil, api.ErrGroupNotRunning
	}
	return group, nil
}

func checkContext(ctx stdcontext.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Status returns a point-in-time snapshot of every supervised service.
func (apiCtrl *ControlAPI) Status(ctx stdcontext.Context) (*api.StatusReport, error) {
	group, err := apiCtrl.group()
	if err != nil {
		return nil, fmt.Errorf("%w for status", err)
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	now := time.Now()
	sups := group.Supervisors()
	services := make([]api.ServiceReport, 0, len(sups))
	for _, sup := range sups {
		services = append(services, serviceReport(sup.Info(), now))
	}
	return &api.StatusReport{GeneratedAt: now, Services: services}, nil
}

// StartAll kicks off the sequential start of every service. Sequencing runs
// on the group's own goroutine, so the call returns immediately.
func (apiCtrl *ControlAPI) StartAll(ctx stdcontext.Context) error {
	group, err := apiCtrl.group()
	if err != nil {
		return fmt.Errorf("%w for start", err)
	}
	if err := checkContext(ctx); err != nil {
		return err
	}
	group.StartAll()
	return nil
}

// StopAll force-stops every service. The stop is detached from the request
// context so a client disconnect cannot cut the terminate grace short.
func (apiCtrl *ControlAPI) StopAll(ctx stdcontext.Context) error {
	group, err := apiCtrl.group()
	if err != nil {
		return fmt.Errorf("%w for stop", err)
	}
	stopCtx, cancel := detachedStopContext(ctx)
	defer cancel()
	return group.StopAll(stopCtx)
}

// StartService starts one service by name and waits for its readiness
// verdict. Cancelling the request aborts the wait.
func (apiCtrl *ControlAPI) StartService(ctx stdcontext.Context, name string) error {
	group, err := apiCtrl.group()
	if err != nil {
		return fmt.Errorf("%w for start", err)
	}
	return group.StartService(ctx, name)
}

// StopService force-stops one service by name, detached from the request
// context like StopAll.
func (apiCtrl *ControlAPI) StopService(ctx stdcontext.Context, name string) error {
	group, err := apiCtrl.group()
	if err != nil {
		return fmt.Errorf("%w for stop", err)
	}
	stopCtx, cancel := detachedStopContext(ctx)
	defer cancel()
	return group.StopService(stopCtx, name)
}

// Reload re-reads the manifest and swaps in a fresh supervisor roster.
func (apiCtrl *ControlAPI) Reload(ctx stdcontext.Context) (*api.ReloadResult, error) {
	group, err := apiCtrl.group()
	if err != nil {
		return nil, fmt.Errorf("%w for reload", err)
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	file, err := apiCtrl.ctx.loadManifest()
	if err != nil {
		return nil, err
	}
	if err := group.Reload(file.Services, file.StartInterval.Duration); err != nil {
		return nil, err
	}
	return &api.ReloadResult{
		Services:      len(file.Services),
		StartInterval: file.StartInterval.Duration.String(),
	}, nil
}

func detachedStopContext(ctx stdcontext.Context) (stdcontext.Context, stdcontext.CancelFunc) {
	if ctx == nil {
		ctx = stdcontext.Background()
	}
	return stdcontext.WithTimeout(stdcontext.WithoutCancel(ctx), shutdownTimeout)
}

func serviceReport(info engine.Info, now time.Time) api.ServiceReport {
	report := api.ServiceReport{
		Name:     info.Name,
		Status:   string(info.Status),
		PID:      info.PID,
		Restarts: info.Restarts,
	}
	if info.PID != 0 && !info.StartedAt.IsZero() {
		startedAt := info.StartedAt
		report.StartedAt = &startedAt
		report.Uptime = info.Uptime(now).Truncate(time.Second).String()
	}
	return report
}

// Ensure interface compliance at compile time.
var _ api.Controller = (*ControlAPI)(nil)
