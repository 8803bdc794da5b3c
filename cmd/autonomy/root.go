package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "autonomy",
	Short: "Bounded-autonomy control plane for agent engines",
	Long: `Autonomy is a control plane that bounds what agent engines may do on
their own.

Engines submit proposed actions; the control plane checks them against
operator-owned boundaries, scores their risk, and routes each one to one of
four outcomes:
  - auto_execute: run immediately through a registered handler
  - queue_approval: wait for a human decision
  - escalate: demand immediate human attention
  - reject: refuse, with the violated boundary on record

Every transition is appended to a hash-chained audit log that can be
verified after the fact.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
