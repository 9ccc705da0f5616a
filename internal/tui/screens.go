package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/tenderdesk/internal/guard"
	"github.com/felixgeelhaar/tenderdesk/internal/session"
)

// Menu choices.
const (
	choiceLogin   = "login"
	choiceSignup  = "signup"
	choiceVerify  = "verify"
	choiceResend  = "resend"
	choiceCreate  = "create"
	choiceJoin    = "join"
	choiceRefresh = "refresh"
	choiceSetting = "settings"
	choiceMembers = "members"
	choiceBack    = "back"
	choiceLogout  = "logout"
	choiceQuit    = "quit"
)

func screenTitle(s guard.Screen) string {
	switch s {
	case guard.ScreenHome:
		return "Welcome"
	case guard.ScreenLogin:
		return "Sign in"
	case guard.ScreenSignup:
		return "Create an account"
	case guard.ScreenVerifyEmail:
		return "Verify your email"
	case guard.ScreenVerifyPrompt:
		return "Check your inbox"
	case guard.ScreenOrganisationChoice:
		return "Join your team"
	case guard.ScreenCreateOrganisation:
		return "Create an organisation"
	case guard.ScreenJoinOrganisation:
		return "Join an organisation"
	case guard.ScreenDashboard:
		return "Dashboard"
	case guard.ScreenSettings:
		return "Settings"
	case guard.ScreenMembers:
		return "Members"
	default:
		return string(s)
	}
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func (a *App) menu(title string, options ...huh.Option[string]) *huh.Form {
	return huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(title).
			Options(options...).
			Value(&a.input.Choice),
	))
}

// buildForm returns the form for s, bound to a.input.
func (a *App) buildForm(s guard.Screen) *huh.Form {
	switch s {
	case guard.ScreenHome:
		return a.menu("What would you like to do?",
			huh.NewOption("Sign in", choiceLogin),
			huh.NewOption("Create an account", choiceSignup),
			huh.NewOption("I have a verification token", choiceVerify),
			huh.NewOption("Quit", choiceQuit),
		)

	case guard.ScreenLogin:
		return huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Email").Value(&a.input.Email).Validate(required("email")),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&a.input.Password).Validate(required("password")),
		))

	case guard.ScreenSignup:
		return huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("First name").Value(&a.input.Firstname).Validate(required("first name")),
			huh.NewInput().Title("Last name").Value(&a.input.Lastname).Validate(required("last name")),
			huh.NewInput().Title("Email").Value(&a.input.Email).Validate(required("email")),
			huh.NewInput().Title("Password").Description("8 to 50 characters").EchoMode(huh.EchoModePassword).Value(&a.input.Password),
		))

	case guard.ScreenVerifyEmail:
		return huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Verification token").Description("Paste the token from the email link").Value(&a.input.Token),
		))

	case guard.ScreenVerifyPrompt:
		options := []huh.Option[string]{huh.NewOption("Enter verification token", choiceVerify)}
		if a.state.IsAuthenticated {
			options = append(options,
				huh.NewOption("Resend verification email", choiceResend),
				huh.NewOption("Sign out", choiceLogout),
			)
		} else {
			options = append(options, huh.NewOption("Back to home", choiceBack))
		}
		options = append(options, huh.NewOption("Quit", choiceQuit))
		return a.menu("Next step", options...)

	case guard.ScreenOrganisationChoice:
		return a.menu("You are not part of an organisation yet",
			huh.NewOption("Create an organisation", choiceCreate),
			huh.NewOption("Join with an invitation code", choiceJoin),
			huh.NewOption("Refresh my profile", choiceRefresh),
			huh.NewOption("Sign out", choiceLogout),
			huh.NewOption("Quit", choiceQuit),
		)

	case guard.ScreenCreateOrganisation:
		return huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Organisation name").CharLimit(50).Value(&a.input.Name).Validate(required("name")),
		))

	case guard.ScreenJoinOrganisation:
		return huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Invitation code").Value(&a.input.Code).Validate(required("code")),
		))

	case guard.ScreenDashboard:
		options := []huh.Option[string]{huh.NewOption("Settings", choiceSetting)}
		if session.IsOwner(a.state) {
			options = append(options, huh.NewOption("Members", choiceMembers))
		}
		options = append(options,
			huh.NewOption("Refresh my profile", choiceRefresh),
			huh.NewOption("Sign out", choiceLogout),
			huh.NewOption("Quit", choiceQuit),
		)
		return a.menu("Go to", options...)

	case guard.ScreenSettings, guard.ScreenMembers:
		return a.menu("",
			huh.NewOption("Back to dashboard", choiceBack),
			huh.NewOption("Sign out", choiceLogout),
		)
	}
	return nil
}

// submit acts on a completed form.
func (a *App) submit() tea.Cmd {
	in := a.input
	switch a.screen {
	case guard.ScreenLogin:
		return a.startBusy(a.login(in.Email, in.Password))
	case guard.ScreenSignup:
		return a.startBusy(a.signup(in))
	case guard.ScreenVerifyEmail:
		return a.startBusy(a.verify(in.Token))
	case guard.ScreenCreateOrganisation:
		return a.startBusy(a.createOrganisation(in.Name))
	case guard.ScreenJoinOrganisation:
		return a.startBusy(a.joinOrganisation(in.Code))
	}
	return a.choose(in.Choice)
}

// choose handles menu selections.
func (a *App) choose(choice string) tea.Cmd {
	a.notice, a.lastErr = "", ""
	switch choice {
	case choiceLogin:
		return a.navigate(guard.ScreenLogin)
	case choiceSignup:
		return a.navigate(guard.ScreenSignup)
	case choiceVerify:
		return a.navigate(guard.ScreenVerifyEmail)
	case choiceCreate:
		return a.navigate(guard.ScreenCreateOrganisation)
	case choiceJoin:
		return a.navigate(guard.ScreenJoinOrganisation)
	case choiceSetting:
		return a.navigate(guard.ScreenSettings)
	case choiceMembers:
		return a.navigate(guard.ScreenMembers)
	case choiceBack:
		if a.state.IsAuthenticated {
			return a.navigate(guard.ScreenDashboard)
		}
		return a.navigate(guard.ScreenHome)
	case choiceResend:
		return a.startBusy(a.resend())
	case choiceRefresh:
		return a.startBusy(a.refreshProfile())
	case choiceLogout:
		return a.startBusy(a.logout())
	case choiceQuit:
		a.quitting = true
		return tea.Quit
	}
	return a.rebuild()
}

// renderHeader shows who is signed in.
func (a *App) renderHeader() string {
	title := a.styles.Title.Render("tenderdesk")
	switch {
	case a.state.IsLoading:
		return title
	case !a.state.IsAuthenticated:
		return title + "  " + a.styles.Muted.Render("not signed in")
	}

	user := a.state.User
	line := title + "  " + a.styles.Status.Render(user.DisplayName()) + " " + a.styles.Muted.Render("<"+user.Email+">")
	if !user.IsVerified {
		line += " " + a.styles.Warning.Render("unverified")
	}
	if user.IsOwner {
		line += " " + a.styles.Badge.Render("owner")
	}
	return line
}

// renderBody is the screen-specific text above the form.
func (a *App) renderBody() string {
	switch a.screen {
	case guard.ScreenVerifyPrompt:
		email := a.pendingEmail()
		if a.state.User != nil {
			email = a.state.User.Email
		}
		if email == "" {
			return "We sent you a verification link."
		}
		return fmt.Sprintf("We sent a verification link to %s.\nOpen it, or paste its token here.", email)

	case guard.ScreenOrganisationChoice:
		return "Create an organisation, or ask an owner for its invitation code.\nJoin requests must be accepted by an owner."

	case guard.ScreenDashboard:
		user := a.state.User
		if user == nil {
			return ""
		}
		role := "member"
		if user.IsOwner {
			role = "owner"
		}
		return a.styles.Border.Render(fmt.Sprintf("Signed in as %s\nRole: %s", user.DisplayName(), role))

	case guard.ScreenSettings:
		return a.renderSettings()

	case guard.ScreenMembers:
		return a.renderMembers()
	}
	return ""
}

func (a *App) renderSettings() string {
	user, token := a.state.User, a.state.Token
	if user == nil || token == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Name:         %s\n", user.DisplayName())
	fmt.Fprintf(&b, "Email:        %s\n", user.Email)
	fmt.Fprintf(&b, "Verified:     %t\n", user.IsVerified)
	if user.OrganisationID != nil {
		fmt.Fprintf(&b, "Organisation: %s\n", *user.OrganisationID)
	}
	fmt.Fprintf(&b, "Owner:        %t\n", user.IsOwner)
	if exp, ok := token.Expiry(); ok {
		fmt.Fprintf(&b, "Token expiry: %s", exp.Local().Format(time.RFC1123))
	}
	return a.styles.Border.Render(strings.TrimRight(b.String(), "\n"))
}

func (a *App) renderMembers() string {
	if a.busy {
		return ""
	}
	if len(a.members) == 0 {
		return a.styles.Muted.Render("No members to show.")
	}
	var b strings.Builder
	b.WriteString(a.styles.TableHead.Render(fmt.Sprintf("%-28s %-32s %s", "Name", "Email", "Role")))
	for _, m := range a.members {
		role := "member"
		if m.IsOwner {
			role = "owner"
		}
		fmt.Fprintf(&b, "\n%-28s %-32s %s", m.DisplayName(), m.Email, role)
	}
	return b.String()
}
