package cmd

import (
	"fmt"

	"github.com/felixgeelhaar/tenderdesk/internal/account"
	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/guard"
)

func notAuthenticated(operation string) error {
	return errors.NewNotAuthenticatedError(operation)
}

// loginFailed turns an unsuccessful LoginResult into a coded error so the
// process exits with the auth code.
func loginFailed(res account.LoginResult) error {
	return errors.New(errors.ErrCodeAuthRejected, res.Reason).
		WithSuggestion("Check the email and password, or create an account with 'tenderdesk auth signup'")
}

func signupFailed(res account.SignupResult) error {
	err := errors.New(errors.ErrCodeAuthInvalidInput, "signup was not accepted: "+res.Reason)
	for field, msg := range res.FieldErrors {
		err.WithSuggestion(fmt.Sprintf("--%s %s", field, msg))
	}
	return err
}

func verifyFailed(res account.VerifyResult) error {
	switch res.Failure {
	case account.VerifyTokenMissing:
		return errors.New(errors.ErrCodeAuthVerifyMissing, res.Reason).
			WithSuggestion("Pass the token from the verification link: tenderdesk auth verify <token>")
	case account.VerifyUnavailable:
		return errors.New(errors.ErrCodeAPINetwork, res.Reason)
	case account.VerifyAlreadyVerified:
		return errors.New(errors.ErrCodeAuthAlreadyVerified, res.Reason)
	default:
		return errors.New(errors.ErrCodeAuthVerifyRejected, res.Reason).
			WithSuggestion("Request a new link with 'tenderdesk auth resend'")
	}
}

func resendFailed(res account.ResendResult) error {
	switch res.Failure {
	case account.ResendAlreadyVerified:
		return errors.New(errors.ErrCodeAuthAlreadyVerified, res.Reason)
	case account.ResendUnavailable:
		return errors.New(errors.ErrCodeAPINetwork, res.Reason)
	default:
		return errors.New(errors.ErrCodeAuthRejected, res.Reason)
	}
}

func organisationFailed(action string, res account.OrganisationResult) error {
	return errors.New(errors.ErrCodeAuthRejected, fmt.Sprintf("%s failed: %s", action, res.Reason))
}

// accessDenied is returned by 'route check --strict' when the screen would
// not render.
func accessDenied(screen guard.Screen, d guard.Decision) error {
	return fmt.Errorf("access denied to %s: %s", screen, d)
}
