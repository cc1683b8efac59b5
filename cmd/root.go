package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hs",
		Short:         "Halcyon session CLI (hs): manage the stored sign-in session",
		Long:          "hs manages the Halcyon client session: sign in and out, inspect the stored session, and mint valid access tokens for authenticated calls.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(app),
		newLogoutCmd(app),
		newStatusCmd(app),
		newTokenCmd(app),
		newProfileCmd(app),
		newWatchCmd(app),
	)

	return rootCmd
}
