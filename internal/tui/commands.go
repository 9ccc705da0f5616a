package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/tenderdesk/internal/account"
	"github.com/felixgeelhaar/tenderdesk/internal/guard"
	"github.com/felixgeelhaar/tenderdesk/internal/ux"
)

// Async operations. Each runs off the UI loop and reports back with a
// message; the session change itself arrives separately as a stateMsg.

func (a *App) restore() tea.Cmd {
	return func() tea.Msg {
		return restoredMsg{err: a.svc.Restore(a.ctx)}
	}
}

func (a *App) login(email, password string) tea.Cmd {
	return func() tea.Msg {
		res, err := a.svc.Login(a.ctx, email, password)
		return loginMsg{result: res, err: err}
	}
}

func (a *App) signup(in formValues) tea.Cmd {
	return func() tea.Msg {
		res, err := a.svc.Signup(a.ctx, account.SignupInput{
			Firstname: in.Firstname,
			Lastname:  in.Lastname,
			Email:     in.Email,
			Password:  in.Password,
		})
		return signupMsg{email: res.Email, result: res, err: err}
	}
}

func (a *App) verify(token string) tea.Cmd {
	return func() tea.Msg {
		res, err := a.svc.VerifyEmail(a.ctx, token)
		return verifyMsg{result: res, err: err}
	}
}

func (a *App) resend() tea.Cmd {
	return func() tea.Msg {
		res, err := a.svc.ResendVerification(a.ctx)
		return resendMsg{result: res, err: err}
	}
}

func (a *App) createOrganisation(name string) tea.Cmd {
	return func() tea.Msg {
		res, err := a.svc.CreateOrganisation(a.ctx, name)
		return organisationMsg{result: res, err: err}
	}
}

func (a *App) joinOrganisation(code string) tea.Cmd {
	return func() tea.Msg {
		res, err := a.svc.JoinOrganisation(a.ctx, code)
		return organisationMsg{join: true, result: res, err: err}
	}
}

func (a *App) refreshProfile() tea.Cmd {
	return func() tea.Msg {
		_, err := a.svc.RefreshUser(a.ctx)
		return profileMsg{err: err}
	}
}

func (a *App) logout() tea.Cmd {
	return func() tea.Msg {
		return loggedOutMsg{err: a.svc.Logout(a.ctx)}
	}
}

func (a *App) loadMembers() tea.Cmd {
	return func() tea.Msg {
		members, err := a.svc.Client().ListMembers(a.ctx)
		return membersMsg{members: members, err: err}
	}
}

// Result handlers.

func (a *App) afterLogin(msg loginMsg) tea.Cmd {
	switch {
	case msg.err != nil:
		a.lastErr = ux.Describe(msg.err)
		return a.rebuild()
	case !msg.result.Success:
		a.lastErr = msg.result.Reason
		return a.rebuild()
	}

	if a.pending != nil {
		if err := a.pending.Clear(); err != nil {
			a.logger.WithError(err).Warn("could not clear pending verification marker")
		}
	}
	next := guard.ScreenDashboard
	switch {
	case !msg.result.IsVerified:
		next = guard.ScreenVerifyPrompt
	case !msg.result.HasOrganisation:
		next = guard.ScreenOrganisationChoice
	}
	return a.navigate(next)
}

func (a *App) afterSignup(msg signupMsg) tea.Cmd {
	switch {
	case msg.err != nil:
		a.lastErr = ux.Describe(msg.err)
		return a.rebuild()
	case !msg.result.Success:
		a.lastErr = msg.result.Reason
		return a.rebuild()
	}

	if a.pending != nil {
		if err := a.pending.Set(msg.email); err != nil {
			a.logger.WithError(err).Warn("could not record pending verification")
		}
	}
	a.notice = "Account created. Verify your email, then sign in."
	return a.navigate(guard.ScreenVerifyPrompt)
}

func (a *App) afterVerify(msg verifyMsg) tea.Cmd {
	switch {
	case msg.err != nil:
		a.lastErr = ux.Describe(msg.err)
		return a.rebuild()
	case msg.result.Failure == account.VerifyAlreadyVerified:
		a.notice = "Your email is already verified."
		return a.navigate(guard.ScreenDashboard)
	case !msg.result.Success:
		a.lastErr = msg.result.Reason
		return a.rebuild()
	}

	if a.pending != nil {
		if err := a.pending.Clear(); err != nil {
			a.logger.WithError(err).Warn("could not clear pending verification marker")
		}
	}
	a.notice = "Email verified."
	if a.state.IsAuthenticated {
		return a.navigate(guard.ScreenDashboard)
	}
	a.notice += " You can sign in now."
	return a.navigate(guard.ScreenLogin)
}

func (a *App) afterResend(msg resendMsg) tea.Cmd {
	switch {
	case msg.err != nil:
		a.lastErr = ux.Describe(msg.err)
	case msg.result.Success:
		a.notice = "Verification email sent to " + msg.result.Email + "."
	case msg.result.Failure == account.ResendAlreadyVerified:
		a.notice = "Your email is already verified."
		return a.navigate(guard.ScreenDashboard)
	default:
		a.lastErr = msg.result.Reason
	}
	return a.rebuild()
}

func (a *App) afterOrganisation(msg organisationMsg) tea.Cmd {
	switch {
	case msg.err != nil:
		a.lastErr = ux.Describe(msg.err)
		return a.rebuild()
	case !msg.result.Success:
		a.lastErr = msg.result.Reason
		return a.rebuild()
	}

	if msg.join && msg.result.Pending {
		a.notice = "Join request sent. An owner must accept it."
		return a.navigate(guard.ScreenOrganisationChoice)
	}
	if msg.result.Organisation != nil {
		a.notice = "Organisation " + msg.result.Organisation.Name + " created. Invitation code: " + msg.result.Organisation.Code
	}
	return a.navigate(guard.ScreenDashboard)
}
