// Package cmd defines the CLI commands for the rankings executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rankings",
		Short: "ATP rankings scraper and API service",
		Long: `rankings keeps a weekly snapshot of the ATP singles top 100.
It fetches the rankings page with a headless browser, extracts player
rows, stores them in PostgreSQL, and serves them over an HTTP API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yaml search path)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newUpdateCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
