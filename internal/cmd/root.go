package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tenderdesk",
	Short: "Terminal client for the tender workspace",
	Long: `tenderdesk signs you in to the tender workspace backend and keeps the
session across invocations. Every screen of the terminal UI is gated by the
same access rules the CLI reports with 'tenderdesk route check'.

Configuration is read from ~/.tenderdesk/config.yaml and TENDERDESK_*
environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which commands use for
// every backend exchange.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.tenderdesk/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json (overrides config)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format: text, json, yaml")
	rootCmd.PersistentFlags().Bool("ephemeral", false, "keep the session in memory only for this invocation")
}
