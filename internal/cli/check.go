package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vigil-dev/vigil/internal/config"
)

func newCheckCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the manifest and print the start plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Manifest %s is valid.\n", *ctx.manifestFile)
			fmt.Fprintf(out, "Start order (interval %s):\n", file.StartInterval.Duration)
			for i, svc := range file.Services {
				fmt.Fprintf(out, "  %d. %s%s\n", i+1, svc.Name, describeService(svc))
			}
			return nil
		},
	}
	return cmd
}

func describeService(svc *config.ServiceSpec) string {
	var notes []string
	switch {
	case svc.Health == nil:
		notes = append(notes, "ready on spawn")
	case svc.Health.Port != nil:
		notes = append(notes, fmt.Sprintf("probe port %d", svc.Health.Port.Number))
	case svc.Health.HTTP != nil:
		notes = append(notes, fmt.Sprintf("probe %s", svc.Health.HTTP.URL))
	}
	if svc.Restart != nil && svc.Restart.Auto {
		if svc.Restart.MaxRetries != nil && *svc.Restart.MaxRetries >= 0 {
			notes = append(notes, fmt.Sprintf("restart up to %d times", *svc.Restart.MaxRetries))
		} else {
			notes = append(notes, "restart unlimited")
		}
	}
	if len(notes) == 0 {
		return ""
	}
	return " (" + strings.Join(notes, ", ") + ")"
}
