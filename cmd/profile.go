package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halcyonapp/halcyon-session-cli/internal/domain"
)

func newProfileCmd(app *app) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the cached user profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.manager.Initialize(cmd.Context())

			var identity *domain.UserIdentity
			if refresh {
				fetched, err := app.manager.RefreshProfile(cmd.Context())
				if err != nil {
					return fmt.Errorf("refresh profile: %w", err)
				}
				identity = &fetched
			} else {
				identity = app.manager.Identity()
			}

			if identity == nil {
				return fmt.Errorf("no cached profile; run 'hs profile --refresh' while signed in")
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(identity)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch a fresh profile from the server")

	return cmd
}
