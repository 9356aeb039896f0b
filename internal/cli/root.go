// Package cli implements profilectl, the operator tool for the registry.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"profilereg/internal/platform/config"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:          "profilectl",
		Short:        "Operator tooling for the profile registry",
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if configFile != "" {
				_ = os.Setenv(config.EnvConfigFile, configFile)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file overlaying the environment")
	cmd.AddCommand(validateCmd(), tokenCmd(), migrateCmd(), tailCmd())
	return cmd
}
