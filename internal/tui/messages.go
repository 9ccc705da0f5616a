package tui

import (
	"github.com/felixgeelhaar/tenderdesk/internal/account"
	"github.com/felixgeelhaar/tenderdesk/internal/session"
)

// stateMsg carries a session snapshot published by the manager.
type stateMsg struct {
	state session.State
}

// restoredMsg reports the end of the startup protocol.
type restoredMsg struct {
	err error
}

type loginMsg struct {
	result account.LoginResult
	err    error
}

type signupMsg struct {
	email  string
	result account.SignupResult
	err    error
}

type verifyMsg struct {
	result account.VerifyResult
	err    error
}

type resendMsg struct {
	result account.ResendResult
	err    error
}

type organisationMsg struct {
	join   bool
	result account.OrganisationResult
	err    error
}

type profileMsg struct {
	err error
}

type loggedOutMsg struct {
	err error
}

type membersMsg struct {
	members []session.Profile
	err     error
}
