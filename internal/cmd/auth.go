package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tenderdesk/internal/account"
	"github.com/felixgeelhaar/tenderdesk/internal/guard"
	"github.com/felixgeelhaar/tenderdesk/internal/session"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in, sign up and manage the stored session",
	Long: `Manage the tender workspace session.

The session is stored by the configured credential store backend and is
reused by every later invocation until you log out or it can no longer be
refreshed.

Examples:
  # Sign in (prompts for the password)
  tenderdesk auth login --email ada@example.com

  # Sign in from a script
  echo "$PASSWORD" | tenderdesk auth login --email ada@example.com --password-stdin

  # Show who is signed in and what to do next
  tenderdesk auth status
`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	Args:  cobra.NoArgs,
	RunE:  withWorkspace(runAuthLogin),
}

var authSignupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Long: `Create an account. Signing up does not sign you in: the backend sends a
verification email first. Until you verify or sign in, 'tenderdesk ui'
opens on the verification prompt.`,
	Args: cobra.NoArgs,
	RunE: withWorkspace(runAuthSignup),
}

var authVerifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Verify your email with the token from the verification link",
	Args:  cobra.MaximumNArgs(1),
	RunE:  withWorkspace(runAuthVerify),
}

var authResendCmd = &cobra.Command{
	Use:   "resend",
	Short: "Send the verification email again",
	Args:  cobra.NoArgs,
	RunE:  withWorkspace(runAuthResend),
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  withWorkspace(runAuthLogout),
}

var authStatusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"whoami"},
	Short:   "Show the stored session",
	Args:    cobra.NoArgs,
	RunE:    withWorkspace(runAuthStatus),
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reload your profile from the backend",
	Args:  cobra.NoArgs,
	RunE:  withWorkspace(runAuthRefresh),
}

var (
	loginEmail         string
	loginPasswordStdin bool

	signupFirstname     string
	signupLastname      string
	signupEmail         string
	signupPasswordStdin bool
)

func init() {
	authLoginCmd.Flags().StringVar(&loginEmail, "email", "", "account email (prompted when empty)")
	authLoginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")

	authSignupCmd.Flags().StringVar(&signupFirstname, "firstname", "", "first name")
	authSignupCmd.Flags().StringVar(&signupLastname, "lastname", "", "last name")
	authSignupCmd.Flags().StringVar(&signupEmail, "email", "", "account email")
	authSignupCmd.Flags().BoolVar(&signupPasswordStdin, "password-stdin", false, "read the password from stdin")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authSignupCmd)
	authCmd.AddCommand(authVerifyCmd)
	authCmd.AddCommand(authResendCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRefreshCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(ctx context.Context, ws *workspace, cmd *cobra.Command, _ []string) error {
	email := loginEmail
	if email == "" {
		if err := huh.NewInput().Title("Email").Value(&email).Run(); err != nil {
			return err
		}
	}
	password, err := readPassword(cmd.InOrStdin(), loginPasswordStdin)
	if err != nil {
		return err
	}

	res, err := ws.svc.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if !res.Success {
		return loginFailed(res)
	}
	if err := ws.pending.Clear(); err != nil {
		ws.logger.WithError(err).Warn("clearing pending verification marker")
	}

	st := ws.state()
	return ws.out.Format(&actionView{
		Message: "Signed in as " + st.User.DisplayName(),
		User:    newProfileView(*st.User),
		Next:    nextStep(ws, st),
	})
}

func runAuthSignup(ctx context.Context, ws *workspace, cmd *cobra.Command, _ []string) error {
	password, err := readPassword(cmd.InOrStdin(), signupPasswordStdin)
	if err != nil {
		return err
	}

	res, err := ws.svc.Signup(ctx, account.SignupInput{
		Firstname: signupFirstname,
		Lastname:  signupLastname,
		Email:     signupEmail,
		Password:  password,
	})
	if err != nil {
		return err
	}
	if !res.Success {
		return signupFailed(res)
	}
	if err := ws.pending.Set(res.Email); err != nil {
		ws.logger.WithError(err).Warn("recording pending verification")
	}

	return ws.out.Format(&actionView{
		Message: fmt.Sprintf("Account created. A verification email was sent to %s.", res.Email),
		Next:    "tenderdesk auth verify <token>",
	})
}

func runAuthVerify(ctx context.Context, ws *workspace, _ *cobra.Command, args []string) error {
	var token string
	if len(args) == 1 {
		token = args[0]
	}

	res, err := ws.svc.VerifyEmail(ctx, token)
	if err != nil {
		return err
	}
	if !res.Success {
		return verifyFailed(res)
	}
	if err := ws.pending.Clear(); err != nil {
		ws.logger.WithError(err).Warn("clearing pending verification marker")
	}

	view := &actionView{Message: "Email verified."}
	st := ws.state()
	if st.IsAuthenticated {
		view.User = newProfileView(*st.User)
		view.Next = nextStep(ws, st)
	} else {
		view.Next = "tenderdesk auth login"
	}
	return ws.out.Format(view)
}

func runAuthResend(ctx context.Context, ws *workspace, _ *cobra.Command, _ []string) error {
	res, err := ws.svc.ResendVerification(ctx)
	if err != nil {
		return err
	}
	if !res.Success {
		return resendFailed(res)
	}
	return ws.out.Format(&actionView{
		Message: "Verification email sent to " + res.Email + ".",
		Next:    "tenderdesk auth verify <token>",
	})
}

func runAuthLogout(ctx context.Context, ws *workspace, _ *cobra.Command, _ []string) error {
	wasSignedIn := ws.state().IsAuthenticated
	if err := ws.svc.Logout(ctx); err != nil {
		return err
	}
	if err := ws.pending.Clear(); err != nil {
		ws.logger.WithError(err).Warn("clearing pending verification marker")
	}

	msg := "Signed out."
	if !wasSignedIn {
		msg = "No active session."
	}
	return ws.out.Format(&actionView{Message: msg})
}

func runAuthStatus(_ context.Context, ws *workspace, _ *cobra.Command, _ []string) error {
	st := ws.state()
	view := &statusView{
		Authenticated: st.IsAuthenticated,
		Store:         ws.store.Backend(),
		Next:          nextStep(ws, st),
	}
	if st.IsAuthenticated {
		view.User = newProfileView(*st.User)
		if exp, ok := st.Token.Expiry(); ok {
			view.ExpiresAt = &exp
		}
	}
	marker, ok, err := ws.pending.Get()
	switch {
	case err != nil:
		ws.logger.WithError(err).Warn("reading pending verification marker")
	case ok:
		view.PendingVerification = marker.Email
	}
	return ws.out.Format(view)
}

func runAuthRefresh(ctx context.Context, ws *workspace, _ *cobra.Command, _ []string) error {
	if err := ws.requireSession("refreshing the profile"); err != nil {
		return err
	}
	profile, err := ws.svc.RefreshUser(ctx)
	if err != nil {
		return err
	}
	return ws.out.Format(&actionView{
		Message: "Profile reloaded.",
		User:    newProfileView(*profile),
		Next:    nextStep(ws, ws.state()),
	})
}

// nextStep names the command that moves the user towards the dashboard,
// following where the guard would send them.
func nextStep(ws *workspace, st session.State) string {
	pendingVerification := ws.pending.Active()
	landing, _ := guard.Resolve(ws.routes, st, guard.ScreenDashboard, pendingVerification)
	switch landing {
	case guard.ScreenLogin:
		if pendingVerification {
			return "tenderdesk auth verify <token>, then tenderdesk auth login"
		}
		return "tenderdesk auth login"
	case guard.ScreenVerifyPrompt:
		return "tenderdesk auth verify <token> (or 'tenderdesk auth resend')"
	case guard.ScreenOrganisationChoice:
		return "tenderdesk org create <name> or tenderdesk org join <code>"
	case guard.ScreenDashboard:
		return "tenderdesk ui"
	default:
		return ""
	}
}

// readPassword takes the first line of in when fromStdin is set, and
// prompts with a masked field otherwise.
func readPassword(in io.Reader, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("reading password from stdin: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	var password string
	err := huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&password).
		Run()
	return password, err
}
