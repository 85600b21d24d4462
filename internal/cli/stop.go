package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStopCmd(ctx *context) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "stop [service...]",
		Short: "Stop services in a running serve instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(addr)
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				if err := client.stopAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out, "All services stopped.")
				return nil
			}
			for _, name := range args {
				if err := client.stopService(cmd.Context(), name); err != nil {
					return fmt.Errorf("stop %s: %w", name, err)
				}
				fmt.Fprintf(out, "Service %s stopped.\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAPIAddr, "Address of the control API")
	return cmd
}
