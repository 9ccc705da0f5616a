package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/guard"
	"github.com/felixgeelhaar/tenderdesk/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive terminal UI",
	Long: `Open the terminal UI. Every screen change goes through the access
controller, so you always land on the first screen you are allowed to see:
login, the verification prompt, the organisation choice or the dashboard.

Examples:
  tenderdesk ui
  tenderdesk ui --screen settings
`,
	Args: cobra.NoArgs,
	RunE: withWorkspace(runUI),
}

var uiScreen string

func init() {
	uiCmd.Flags().StringVar(&uiScreen, "screen", string(guard.ScreenDashboard), "screen to open first")
	rootCmd.AddCommand(uiCmd)
}

func runUI(ctx context.Context, ws *workspace, _ *cobra.Command, _ []string) error {
	start, err := guard.ParseScreen(uiScreen)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAuthInvalidInput, "unknown screen", err)
	}
	return tui.Run(ctx, tui.Config{
		Service: ws.svc,
		Routes:  ws.routes,
		Pending: ws.pending,
		Logger:  ws.logger,
		Start:   start,
	})
}
