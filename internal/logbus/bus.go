// Package logbus provides the ordered in-memory event stream shared by every
// supervisor and rendered by the presentation layer. Producers append without
// blocking and nothing is ever dropped; the single logical consumer drains the
// accumulated backlog in arrival order at its own cadence.
package logbus

import (
	"fmt"
	"sync"
	"time"
)

// Event sources. Child output is tagged with the pipe it arrived on;
// supervisor lifecycle messages use SourceSystem.
const (
	SourceStdout = "stdout"
	SourceStderr = "stderr"
	SourceSystem = "system"
)

// Event is a single timestamped log line attributed to a service.
type Event struct {
	Time    time.Time
	Service string
	Source  string
	Message string
}

// Bus accumulates events in arrival order. The zero value is not usable;
// construct with New.
type Bus struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

// New constructs an empty bus.
func New() *Bus {
	return &Bus{notify: make(chan struct{}, 1)}
}

// Publish appends an event to the backlog. A zero Time is stamped with the
// current time and an empty Source defaults to SourceSystem. Publish never
// blocks the caller.
func (b *Bus) Publish(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	if evt.Source == "" {
		evt.Source = SourceSystem
	}
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Systemf publishes a formatted lifecycle message attributed to service.
func (b *Bus) Systemf(service, format string, args ...any) {
	b.Publish(Event{
		Service: service,
		Source:  SourceSystem,
		Message: fmt.Sprintf(format, args...),
	})
}

// Drain returns the accumulated backlog and clears it. Arrival order is
// preserved across drains. Drain returns nil when no events are pending.
func (b *Bus) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	out := b.events
	b.events = nil
	return out
}

// Len reports the number of pending events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Updated returns a channel that receives a coalesced signal after each
// publish, letting a follower sleep between drains instead of polling hot.
func (b *Bus) Updated() <-chan struct{} {
	return b.notify
}
