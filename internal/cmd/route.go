package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/guard"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Explain what the access controller decides for each screen",
	Long: `Inspect the access rules applied to every screen of the terminal UI.

The decision uses the stored session, so it shows exactly where
'tenderdesk ui' would take you.

Available subcommands:
  list   - Decision for every declared screen
  check  - Decision for one screen, following redirects

Examples:
  # Where would the members screen take me?
  tenderdesk route check members

  # Fail (exit 4) unless the dashboard renders
  tenderdesk route check dashboard --strict

  # All screens as JSON
  tenderdesk route list --format json
`,
}

var routeListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the decision for every screen",
	Args:  cobra.NoArgs,
	RunE:  withWorkspace(runRouteList),
}

var routeCheckCmd = &cobra.Command{
	Use:       "check <screen>",
	Short:     "Show the decision for one screen",
	Args:      cobra.ExactArgs(1),
	ValidArgs: screenNames(),
	RunE:      withWorkspace(runRouteCheck),
}

var routeCheckStrict bool

func init() {
	routeCheckCmd.Flags().BoolVar(&routeCheckStrict, "strict", false, "exit with an error unless the screen renders")

	routeCmd.AddCommand(routeListCmd)
	routeCmd.AddCommand(routeCheckCmd)
	rootCmd.AddCommand(routeCmd)
}

func runRouteList(_ context.Context, ws *workspace, _ *cobra.Command, _ []string) error {
	table := &routeTable{}
	for _, screen := range ws.routes.Declared() {
		table.Routes = append(table.Routes, resolveRoute(ws, screen))
	}
	return ws.out.Format(table)
}

func runRouteCheck(_ context.Context, ws *workspace, _ *cobra.Command, args []string) error {
	screen, err := guard.ParseScreen(args[0])
	if err != nil {
		return errors.Wrap(errors.ErrCodeAuthInvalidInput, "unknown screen", err).
			WithSuggestion("List screens with 'tenderdesk route list'")
	}

	view := resolveRoute(ws, screen)
	if err := ws.out.Format(&view); err != nil {
		return err
	}
	if routeCheckStrict && !view.Decision.Rendered() {
		return accessDenied(screen, view.Decision)
	}
	return nil
}

// decideScreen evaluates one screen against the stored session.
func decideScreen(ws *workspace, screen guard.Screen) guard.Decision {
	return guard.Decide(ws.routes, ws.state(), screen, ws.pending.Active())
}

func resolveRoute(ws *workspace, screen guard.Screen) routeView {
	class, _ := ws.routes.ClassOf(screen)
	lands, _ := guard.Resolve(ws.routes, ws.state(), screen, ws.pending.Active())
	return routeView{
		Screen:   screen,
		Class:    class,
		Decision: decideScreen(ws, screen),
		Lands:    lands,
	}
}

func screenNames() []string {
	screens := guard.Screens()
	names := make([]string, 0, len(screens))
	for _, s := range screens {
		names = append(names, s.String())
	}
	return names
}
