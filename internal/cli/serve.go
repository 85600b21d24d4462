package cli

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	apihttp "github.com/vigil-dev/vigil/internal/api/http"
	"github.com/vigil-dev/vigil/internal/cliutil"
	"github.com/vigil-dev/vigil/internal/logbus"
)

var newAPIServer = apihttp.NewServer

func newServeCmd(ctx *context) *cobra.Command {
	var addr string
	var backlog int
	var jsonLogs bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run services with the HTTP control API enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := ctx.buildGroup()
			if err != nil {
				return err
			}
			ctx.setGroup(group)
			defer ctx.clearGroup(group)

			stream := newLogStream(backlog)
			server, err := newAPIServer(apihttp.Config{
				Addr:       addr,
				Controller: NewControlAPI(ctx),
				Logs:       stream.Tail,
			})
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
				record := cliutil.NewLogRecord(evt)
				if record.Timestamp.IsZero() {
					record.Timestamp = time.Now()
				}
				stream.Append(record)
				if enc != nil {
					cliutil.EncodeLogRecord(enc, errOut, record)
					return
				}
				fmt.Fprintln(out, cliutil.FormatRecord(record))
			}

			followCtx, stopFollow := stdcontext.WithCancel(stdcontext.Background())
			defer stopFollow()
			var follower sync.WaitGroup
			follower.Add(1)
			go func() {
				defer follower.Done()
				followBus(followCtx, group.Bus(), sink)
			}()

			runCtx, cancelRun := stdcontext.WithCancel(cmd.Context())
			defer cancelRun()
			serverErrCh := make(chan error, 1)
			go func() {
				serverErrCh <- server.Run(runCtx)
			}()

			// Give the listener a beat to bind so startup failures surface
			// before any service is spawned.
			readyTimer := time.NewTimer(200 * time.Millisecond)
			defer readyTimer.Stop()
			select {
			case err := <-serverErrCh:
				stopFollow()
				follower.Wait()
				return err
			case <-readyTimer.C:
			case <-runCtx.Done():
				stopFollow()
				follower.Wait()
				if err := <-serverErrCh; err != nil && !errors.Is(err, stdcontext.Canceled) && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return runCtx.Err()
			}
			fmt.Fprintf(out, "Control API listening on %s\n", server.Addr())

			group.StartAll()

			var serverErr error
			select {
			case serverErr = <-serverErrCh:
				// Server died on its own; take the services down with it.
			case <-runCtx.Done():
				serverErr = <-serverErrCh
			}

			stopCtx, cancel := stdcontext.WithTimeout(stdcontext.WithoutCancel(cmd.Context()), shutdownTimeout)
			defer cancel()
			shutdownErr := group.Shutdown(stopCtx)

			stopFollow()
			follower.Wait()

			if shutdownErr != nil {
				fmt.Fprintf(errOut, "shutdown error: %v\n", shutdownErr)
			}
			if serverErr != nil && !errors.Is(serverErr, stdcontext.Canceled) {
				return serverErr
			}
			return shutdownErr
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAPIAddr, "Address for the HTTP control API")
	cmd.Flags().IntVar(&backlog, "log-backlog", defaultLogBacklog, "Log records retained for the logs endpoint")
	cmd.Flags().BoolVar(&jsonLogs, "json", false, "Emit logs as JSON records")
	return cmd
}
