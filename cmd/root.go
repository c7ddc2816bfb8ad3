package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rescue",
		Short:         "Find and reactivate billing accounts lost to failed payments",
		Long:          "rescue scans a billing site for accounts whose newest subscription expired for nonpayment, then reactivates them in a resumable, checkpointed batch run.",
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
		newConfigCmd(),
		newDiscoverCmd(app),
		newRunCmd(app),
		newResumeCmd(app),
	)

	return rootCmd
}
