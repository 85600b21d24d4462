package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vigil-dev/vigil/internal/engine"
)

var statusColors = map[string]func(a ...interface{}) string{
	string(engine.StatusIdle):     color.New(color.FgWhite).SprintFunc(),
	string(engine.StatusStarting): color.New(color.FgYellow).SprintFunc(),
	string(engine.StatusRunning):  color.New(color.FgGreen).SprintFunc(),
	string(engine.StatusFailed):   color.New(color.FgRed).SprintFunc(),
	string(engine.StatusStopped):  color.New(color.FgCyan).SprintFunc(),
	string(engine.StatusExited):   color.New(color.FgMagenta).SprintFunc(),
}

func colorizeStatus(status string) string {
	if paint, ok := statusColors[status]; ok {
		return paint(status)
	}
	return status
}

func newStatusCmd(ctx *context) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Display service status from a running serve instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(addr)
			report, err := client.status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVICE\tSTATUS\tPID\tUPTIME\tRESTARTS")
			for _, svc := range report.Services {
				pid := "-"
				if svc.PID != 0 {
					pid = strconv.Itoa(svc.PID)
				}
				uptime := svc.Uptime
				if uptime == "" {
					uptime = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					svc.Name, colorizeStatus(svc.Status), pid, uptime, svc.Restarts)
			}
			w.Flush()
			fmt.Fprintf(out, "\nGenerated at %s\n", report.GeneratedAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAPIAddr, "Address of the control API")
	return cmd
}
