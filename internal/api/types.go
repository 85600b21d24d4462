// Package api defines the controller contract and transport-neutral report
// types shared by the control server and its CLI clients.
package api

import (
	stdcontext "context"
	"errors"
	"time"
)

// ErrGroupNotRunning reports that no supervision group is attached to the
// controller, typically because the serving process is shutting down.
var ErrGroupNotRunning = errors.New("supervisor group is not running")

// ServiceReport describes the runtime state of a single supervised service.
type ServiceReport struct {
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	PID       int        `json:"pid,omitempty"`
	Restarts  int        `json:"restarts"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Uptime    string     `json:"uptime,omitempty"`
}

// StatusReport aggregates group-wide state. Services appear in manifest
// order.
type StatusReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Services    []ServiceReport `json:"services"`
}

// ReloadResult captures the outcome of a manifest reload.
type ReloadResult struct {
	Services      int    `json:"services"`
	StartInterval string `json:"start_interval"`
}

// Controller exposes the supervision operations required by control servers.
type Controller interface {
	Status(stdcontext.Context) (*StatusReport, error)
	StartAll(stdcontext.Context) error
	StopAll(stdcontext.Context) error
	StartService(stdcontext.Context, string) error
	StopService(stdcontext.Context, string) error
	Reload(stdcontext.Context) (*ReloadResult, error)
}
