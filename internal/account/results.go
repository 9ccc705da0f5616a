package account

import (
	"github.com/felixgeelhaar/tenderdesk/internal/platform"
	"github.com/felixgeelhaar/tenderdesk/internal/session"
)

// LoginResult is returned by Login. On success it carries the flags the
// caller needs to pick the next screen without reading the session again.
type LoginResult struct {
	Success         bool
	IsVerified      bool
	HasOrganisation bool
	// Reason is a human-readable message when Success is false.
	Reason string
}

// SignupResult is returned by Signup. A successful signup never signs in.
type SignupResult struct {
	Success           bool
	NeedsVerification bool
	Email             string
	Reason            string
	// FieldErrors maps JSON field names to validation messages.
	FieldErrors map[string]string
}

// VerifyFailure tells "no token" apart from "token refused", and both
// apart from redeeming a token for an account that is already verified.
type VerifyFailure int

const (
	VerifyOK VerifyFailure = iota
	VerifyTokenMissing
	VerifyTokenRejected
	VerifyUnavailable
	VerifyAlreadyVerified
)

func (f VerifyFailure) String() string {
	switch f {
	case VerifyOK:
		return "ok"
	case VerifyTokenMissing:
		return "token missing"
	case VerifyTokenRejected:
		return "token rejected"
	case VerifyUnavailable:
		return "unavailable"
	case VerifyAlreadyVerified:
		return "already verified"
	default:
		return "unknown"
	}
}

// VerifyResult is returned by VerifyEmail.
type VerifyResult struct {
	Success bool
	Failure VerifyFailure
	Reason  string
	// ProfileRefreshed is true when a signed-in profile was reloaded.
	ProfileRefreshed bool
}

// ResendFailure classifies a failed resend.
type ResendFailure int

const (
	ResendOK ResendFailure = iota
	ResendAlreadyVerified
	ResendRejected
	ResendUnavailable
)

// ResendResult is returned by ResendVerification.
type ResendResult struct {
	Success bool
	Failure ResendFailure
	Email   string
	Reason  string
}

// OrganisationResult is returned by CreateOrganisation and JoinOrganisation.
type OrganisationResult struct {
	Success bool
	Reason  string
	// Organisation is set after a successful create.
	Organisation *platform.Organisation
	// Pending is true when a join request awaits an owner's approval.
	Pending bool
	Profile *session.Profile
}
