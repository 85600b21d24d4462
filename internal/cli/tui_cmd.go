package cli

import (
	stdcontext "context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vigil-dev/vigil/internal/engine"
	"github.com/vigil-dev/vigil/internal/tui"
)

// dashboard is the slice of *tui.UI the command layer depends on, kept
// narrow so tests can substitute a stub.
type dashboard interface {
	Run(ctx stdcontext.Context) error
	Stop()
}

var newDashboard = func(group *engine.Group, opts ...tui.Option) dashboard {
	return tui.New(group, opts...)
}

func newTuiCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive supervision dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !supportsInteractiveOutput(cmd) {
				return fmt.Errorf("tui requires an interactive terminal")
			}
			return runDashboard(cmd, ctx)
		},
	}
	return cmd
}

// runDashboard owns the group lifecycle around the dashboard: start every
// service, render until the UI exits, then shut the group down.
func runDashboard(cmd *cobra.Command, ctx *context) error {
	group, err := ctx.buildGroup()
	if err != nil {
		return err
	}

	reload := func() error {
		file, err := ctx.loadManifest()
		if err != nil {
			return err
		}
		return group.Reload(file.Services, file.StartInterval.Duration)
	}

	ui := newDashboard(group, tui.WithReload(reload))

	group.StartAll()

	runErr := ui.Run(cmd.Context())

	stopCtx, cancel := stdcontext.WithTimeout(stdcontext.WithoutCancel(cmd.Context()), shutdownTimeout)
	defer cancel()
	stopErr := group.Shutdown(stopCtx)

	if runErr != nil {
		return runErr
	}
	return stopErr
}

func supportsInteractiveOutput(cmd *cobra.Command) bool {
	file, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
