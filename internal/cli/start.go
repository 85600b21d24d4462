package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStartCmd(ctx *context) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "start [service...]",
		Short: "Start services in a running serve instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(addr)
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				if err := client.startAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out, "Start sequence requested.")
				return nil
			}
			for _, name := range args {
				if err := client.startService(cmd.Context(), name); err != nil {
					return fmt.Errorf("start %s: %w", name, err)
				}
				fmt.Fprintf(out, "Service %s started.\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAPIAddr, "Address of the control API")
	return cmd
}
