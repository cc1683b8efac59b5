package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing if needed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.manager.Initialize(cmd.Context())

			token, err := app.manager.AccessToken(cmd.Context())
			if err != nil {
				return fmt.Errorf("access token: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
}
