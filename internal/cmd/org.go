package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tenderdesk/internal/guard"
)

var orgCmd = &cobra.Command{
	Use:     "org",
	Aliases: []string{"organisation"},
	Short:   "Create or join an organisation",
	Long: `Every tender folder belongs to an organisation. After verifying your
email you either create an organisation (and become its owner) or ask to
join one with the invitation code an owner shared with you.

Examples:
  tenderdesk org create "Acme Bids"
  tenderdesk org join K7Q2-MX9P
  tenderdesk org members
`,
}

var orgCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an organisation and become its owner",
	Args:  cobra.ExactArgs(1),
	RunE:  withWorkspace(runOrgCreate),
}

var orgJoinCmd = &cobra.Command{
	Use:   "join <code>",
	Short: "Request to join an organisation with an invitation code",
	Args:  cobra.ExactArgs(1),
	RunE:  withWorkspace(runOrgJoin),
}

var orgMembersCmd = &cobra.Command{
	Use:   "members",
	Short: "List the members of your organisation (owners only)",
	Args:  cobra.NoArgs,
	RunE:  withWorkspace(runOrgMembers),
}

func init() {
	orgCmd.AddCommand(orgCreateCmd)
	orgCmd.AddCommand(orgJoinCmd)
	orgCmd.AddCommand(orgMembersCmd)
	rootCmd.AddCommand(orgCmd)
}

func runOrgCreate(ctx context.Context, ws *workspace, _ *cobra.Command, args []string) error {
	res, err := ws.svc.CreateOrganisation(ctx, args[0])
	if err != nil {
		return err
	}
	if !res.Success {
		return organisationFailed("creating the organisation", res)
	}

	view := &actionView{
		Message: fmt.Sprintf("Created %s. Invitation code: %s", res.Organisation.Name, res.Organisation.Code),
		Next:    nextStep(ws, ws.state()),
	}
	if res.Profile != nil {
		view.User = newProfileView(*res.Profile)
	}
	return ws.out.Format(view)
}

func runOrgJoin(ctx context.Context, ws *workspace, _ *cobra.Command, args []string) error {
	res, err := ws.svc.JoinOrganisation(ctx, args[0])
	if err != nil {
		return err
	}
	if !res.Success {
		return organisationFailed("joining the organisation", res)
	}

	msg := res.Reason
	if msg == "" {
		msg = "Join request sent."
	}
	if res.Pending {
		msg += " An owner has to accept it before you can open the dashboard."
	}
	view := &actionView{Message: msg, Next: nextStep(ws, ws.state())}
	if res.Profile != nil {
		view.User = newProfileView(*res.Profile)
	}
	return ws.out.Format(view)
}

func runOrgMembers(ctx context.Context, ws *workspace, _ *cobra.Command, _ []string) error {
	if err := ws.requireSession("listing members"); err != nil {
		return err
	}
	if d := decideScreen(ws, guard.ScreenMembers); !d.Rendered() {
		return accessDenied(guard.ScreenMembers, d)
	}

	members, err := ws.svc.Client().ListMembers(ctx)
	if err != nil {
		return err
	}
	view := &membersView{Members: make([]*profileView, 0, len(members))}
	for _, m := range members {
		view.Members = append(view.Members, newProfileView(m))
	}
	return ws.out.Format(view)
}
