package engine

import "time"

// Status describes the most recent lifecycle outcome of a supervised service.
type Status string

const (
	// StatusIdle means the service has never been started.
	StatusIdle Status = "idle"
	// StatusStarting means a start sequence is underway: the child is being
	// spawned or its readiness probe has not yet delivered a verdict.
	StatusStarting Status = "starting"
	// StatusRunning means the child passed its readiness gate and is live.
	StatusRunning Status = "running"
	// StatusFailed means the most recent attempt failed before readiness:
	// missing required files, a spawn error, or a probe failure.
	StatusFailed Status = "failed"
	// StatusStopped means the service was stopped deliberately.
	StatusStopped Status = "stopped"
	// StatusExited means the child exited on its own after readiness.
	StatusExited Status = "exited"
)

// Info is a point-in-time snapshot of a supervisor.
type Info struct {
	Name      string
	Status    Status
	PID       int
	Restarts  int
	StartedAt time.Time
}

// Uptime reports how long the current child has been alive, or zero when no
// child is live.
func (i Info) Uptime(now time.Time) time.Duration {
	if i.PID == 0 || i.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(i.StartedAt)
}
