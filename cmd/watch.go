package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// watch keeps the inactivity monitor running and prints session state
// transitions until interrupted. Useful when another process consumes
// tokens from the same store.
func newWatchCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch session state and enforce auto-logout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			state := app.manager.Initialize(ctx)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session: %s\n", state)

			transitions, cancel := app.manager.Subscribe()
			defer cancel()

			monitor := app.newMonitor()
			go monitor.Run(ctx)

			for {
				select {
				case <-ctx.Done():
					return nil
				case next := <-transitions:
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session: %s\n", next)
				}
			}
		},
	}
}
