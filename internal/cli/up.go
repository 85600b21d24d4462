package cli

import (
	stdcontext "context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/vigil-dev/vigil/internal/cliutil"
	"github.com/vigil-dev/vigil/internal/logbus"
)

func newUpCmd(ctx *context) *cobra.Command {
	var jsonLogs bool
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start every service and stream logs until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := ctx.buildGroup()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			var enc *json.Encoder
			if jsonLogs {
				enc = json.NewEncoder(out)
			}
			sink := func(evt logbus.Event) {
				if enc != nil {
					cliutil.EncodeLogEvent(enc, errOut, evt)
					return
				}
				fmt.Fprintln(out, cliutil.FormatEvent(evt))
			}

			followCtx, stopFollow := stdcontext.WithCancel(stdcontext.Background())
			defer stopFollow()
			var follower sync.WaitGroup
			follower.Add(1)
			go func() {
				defer follower.Done()
				followBus(followCtx, group.Bus(), sink)
			}()

			group.StartAll()

			<-cmd.Context().Done()

			stopCtx, cancel := stdcontext.WithTimeout(stdcontext.WithoutCancel(cmd.Context()), shutdownTimeout)
			defer cancel()
			err = group.Shutdown(stopCtx)

			stopFollow()
			follower.Wait()

			if err != nil {
				fmt.Fprintf(errOut, "shutdown error: %v\n", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonLogs, "json", false, "Emit logs as JSON records")
	return cmd
}
