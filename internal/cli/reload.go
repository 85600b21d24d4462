package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReloadCmd(ctx *context) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask a running serve instance to re-read its manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(addr)
			result, err := client.reload(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reloaded %d services (start interval %s).\n",
				result.Services, result.StartInterval)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAPIAddr, "Address of the control API")
	return cmd
}
