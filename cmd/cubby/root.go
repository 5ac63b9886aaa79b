package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "cubby",
		Short:         "Cubby ingest operator CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(
		newAssetCommand(ctx),
		newJobsCommand(ctx),
		newWorkCommand(ctx),
		newStatusCommand(ctx),
		newDoctorCommand(ctx),
		newConfigCommand(ctx),
		newLogsCommand(ctx),
		newTestNotifyCommand(ctx),
	)

	return rootCmd
}
