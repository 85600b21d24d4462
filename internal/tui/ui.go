// Package tui renders the interactive supervision dashboard: a live service
// table on top, the shared log stream below.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/vigil-dev/vigil/internal/cliutil"
	"github.com/vigil-dev/vigil/internal/engine"
	"github.com/vigil-dev/vigil/internal/logbus"
)

const (
	tableTitle = "Services"
	logsTitle  = "Logs"

	statusRefreshInterval = time.Second
	logDrainInterval      = 250 * time.Millisecond
	defaultMaxLogLines    = 2000
)

// Option configures UI behaviour.
type Option func(*UI)

// WithMaxLogLines bounds the scrollback retained in the log pane.
func WithMaxLogLines(n int) Option {
	return func(u *UI) {
		if n > 0 {
			u.maxLogLines = n
		}
	}
}

// WithReload installs the handler invoked by the reload key binding.
func WithReload(reload func() error) Option {
	return func(u *UI) {
		u.reload = reload
	}
}

// UI coordinates the interactive dashboard backed by tview. The table is
// rebuilt from supervisor snapshots once a second; the log pane appends bus
// drains on a faster cadence.
type UI struct {
	app    *tview.Application
	table  *tview.Table
	logs   *tview.TextView
	footer *tview.TextView

	group  *engine.Group
	bus    *logbus.Bus
	reload func() error

	maxLogLines int

	// visible maps table rows to service names. Touched only from the UI
	// goroutine (render and key handlers).
	visible []string

	cancelMu sync.Mutex
	runCtx   context.Context
	cancel   context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// New constructs a UI bound to the supplied group.
func New(group *engine.Group, opts ...Option) *UI {
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 1).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	logs := tview.NewTextView().SetWrap(false)
	logs.SetBorder(true).SetTitle(logsTitle)

	footer := tview.NewTextView().SetTextAlign(tview.AlignCenter)
	footer.SetText("s start  x stop  a start all  z stop all  r reload  q quit")

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 3, true).
		AddItem(logs, 0, 2, false).
		AddItem(footer, 1, 0, false)

	ui := &UI{
		app:         app,
		table:       table,
		logs:        logs,
		footer:      footer,
		group:       group,
		bus:         group.Bus(),
		maxLogLines: defaultMaxLogLines,
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ui)
	}

	logs.SetMaxLines(ui.maxLogLines)
	logs.SetChangedFunc(func() {
		app.Draw()
	})
	logs.ScrollToEnd()

	app.SetRoot(flex, true)
	app.SetInputCapture(ui.handleKey)

	ui.renderTable(snapshotInfos(group), time.Now())

	return ui
}

// Done returns a channel that is closed when the UI stops.
func (u *UI) Done() <-chan struct{} {
	return u.done
}

// Run starts the tview application and the refresh loops until Stop is
// invoked or the provided context is cancelled.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	u.cancelMu.Lock()
	u.runCtx = ctx
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.wg.Add(2)
	go func() {
		defer u.wg.Done()
		u.pollStatus(ctx)
	}()
	go func() {
		defer u.wg.Done()
		u.followLogs(ctx)
	}()

	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	err := u.app.Run()

	u.cancelMu.Lock()
	cancel = u.cancel
	u.cancel = nil
	u.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	u.wg.Wait()
	u.Stop()

	return err
}

// Stop terminates the application loop and releases resources.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancel = nil
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		u.app.Stop()
		close(u.done)
	})
}

func (u *UI) pollStatus(ctx context.Context) {
	u.refreshTable()
	ticker := time.NewTicker(statusRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.refreshTable()
		}
	}
}

func (u *UI) refreshTable() {
	infos := snapshotInfos(u.group)
	now := time.Now()
	select {
	case <-u.done:
		return
	default:
	}
	u.app.QueueUpdateDraw(func() {
		u.renderTable(infos, now)
	})
}

func (u *UI) followLogs(ctx context.Context) {
	ticker := time.NewTicker(logDrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			u.flushLogs()
			return
		case <-ticker.C:
			u.flushLogs()
		}
	}
}

func (u *UI) flushLogs() {
	events := u.bus.Drain()
	if len(events) == 0 {
		return
	}
	var b strings.Builder
	for _, evt := range events {
		b.WriteString(cliutil.FormatEvent(evt))
		b.WriteByte('\n')
	}
	fmt.Fprint(u.logs, b.String())
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlC:
		go u.Stop()
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go u.Stop()
			return nil
		case 'a', 'A':
			u.group.StartAll()
			return nil
		case 'z', 'Z':
			u.dispatch("stop all", func(ctx context.Context) error {
				return u.group.StopAll(ctx)
			})
			return nil
		case 's', 'S':
			if name := u.selectedService(); name != "" {
				u.dispatch("start "+name, func(ctx context.Context) error {
					return u.group.StartService(ctx, name)
				})
			}
			return nil
		case 'x', 'X':
			if name := u.selectedService(); name != "" {
				u.dispatch("stop "+name, func(ctx context.Context) error {
					return u.group.StopService(ctx, name)
				})
			}
			return nil
		case 'r', 'R':
			if u.reload != nil {
				reload := u.reload
				u.dispatch("reload", func(context.Context) error {
					return reload()
				})
			}
			return nil
		}
	}
	return event
}

// dispatch runs a supervisor operation on its own goroutine so the UI loop
// never blocks on a health wait or a stop grace window. Failures surface as
// bus lines next to the supervisor's own output.
func (u *UI) dispatch(what string, op func(context.Context) error) {
	go func() {
		if err := op(u.runContext()); err != nil && !errors.Is(err, context.Canceled) {
			u.bus.Systemf("vigil", "%s: %v", what, err)
		}
	}()
}

func (u *UI) runContext() context.Context {
	u.cancelMu.Lock()
	defer u.cancelMu.Unlock()
	if u.runCtx != nil {
		return u.runCtx
	}
	return context.Background()
}

func (u *UI) selectedService() string {
	row, _ := u.table.GetSelection()
	if row <= 0 || row-1 >= len(u.visible) {
		return ""
	}
	return u.visible[row-1]
}

func (u *UI) renderTable(infos []engine.Info, now time.Time) {
	u.table.Clear()

	headers := []string{"SERVICE", "STATUS", "PID", "UPTIME", "RESTARTS"}
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		u.table.SetCell(0, col, cell)
	}

	names := make([]string, 0, len(infos))
	for row, info := range infos {
		names = append(names, info.Name)

		pid := "-"
		if info.PID != 0 {
			pid = strconv.Itoa(info.PID)
		}
		uptime := "-"
		if d := info.Uptime(now); d > 0 {
			uptime = d.Truncate(time.Second).String()
		}

		values := []string{
			info.Name,
			string(info.Status),
			pid,
			uptime,
			strconv.Itoa(info.Restarts),
		}
		for col, value := range values {
			cell := tview.NewTableCell(value)
			if col == 0 {
				cell = cell.SetReference(info.Name)
			}
			if col == 1 {
				cell = cell.SetTextColor(statusColor(info.Status))
			}
			u.table.SetCell(row+1, col, cell)
		}
	}
	u.visible = names
}

func snapshotInfos(group *engine.Group) []engine.Info {
	sups := group.Supervisors()
	infos := make([]engine.Info, 0, len(sups))
	for _, sup := range sups {
		infos = append(infos, sup.Info())
	}
	return infos
}

func statusColor(status engine.Status) tcell.Color {
	switch status {
	case engine.StatusRunning:
		return tcell.ColorGreen
	case engine.StatusStarting:
		return tcell.ColorYellow
	case engine.StatusFailed:
		return tcell.ColorRed
	case engine.StatusStopped:
		return tcell.ColorAqua
	case engine.StatusExited:
		return tcell.ColorFuchsia
	default:
		return tcell.ColorWhite
	}
}
