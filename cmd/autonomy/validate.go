package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kermit457/gICM-sub020/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load the configuration file, apply defaults and environment variable
overrides, and report every validation error found.

Examples:
  # Validate the default config
  autonomy validate

  # Validate a specific file
  autonomy validate --config /etc/autonomy/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			var verr config.ValidationError
			if errors.As(err, &verr) {
				for _, fieldErr := range verr.Errors {
					fmt.Printf("  error: %s\n", fieldErr.Error())
				}
			}
			return err
		}

		fmt.Printf("configuration valid: %s\n", cfgFile)
		if verbose {
			fmt.Printf("  autonomy level: %d\n", cfg.Engine.AutonomyLevel)
			fmt.Printf("  audit backend:  %s\n", cfg.Audit.Backend)
			fmt.Printf("  state backend:  %s\n", cfg.State.Backend)
			fmt.Printf("  policy mode:    %s\n", cfg.Policy.Mode)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
