package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var storeFlag string

	ctx := newCommandContext(&configFlag, &storeFlag)

	rootCmd := &cobra.Command{
		Use:           "livescript",
		Short:         "Live transcript and voice-over sync server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return setupLogger(cfg, cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Document store: postgres or memory (overrides STORE)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))
	rootCmd.AddCommand(newHashPasswordCommand())
	rootCmd.AddCommand(newStatusCommand(ctx))

	return rootCmd
}

// shouldSkipConfig reports commands that run without a configuration.
func shouldSkipConfig(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "hash-password", "help", "completion":
		return true
	}
	return !cmd.HasParent()
}
