package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vigil-dev/vigil/internal/cliutil"
)

func newLogsCmd(ctx *context) *cobra.Command {
	var addr string
	var tail int
	var jsonLogs bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Fetch recent log records from a running serve instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(addr)
			records, err := client.logs(cmd.Context(), tail)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonLogs {
				enc := json.NewEncoder(out)
				for _, record := range records {
					cliutil.EncodeLogRecord(enc, cmd.ErrOrStderr(), record)
				}
				return nil
			}
			for _, record := range records {
				fmt.Fprintln(out, cliutil.FormatRecord(record))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAPIAddr, "Address of the control API")
	cmd.Flags().IntVar(&tail, "tail", 0, "Number of records to fetch (0 uses the server default)")
	cmd.Flags().BoolVar(&jsonLogs, "json", false, "Emit records as JSON")
	return cmd
}
