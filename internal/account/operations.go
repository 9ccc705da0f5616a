package account

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/platform"
	"github.com/felixgeelhaar/tenderdesk/internal/session"
)

// Fallback messages when the backend gives no detail.
const (
	reasonLoginFailed     = "login failed"
	reasonSignupFailed    = "signup failed"
	reasonUnreachable     = "the server could not be reached"
	reasonTokenMissing    = "verification token is missing"
	reasonTokenRejected   = "verification token is invalid or expired"
	reasonAlreadyVerified = "email is already verified"
)

var errEmptyToken = errors.New(errors.ErrCodeAPIMalformed, "response carried no access token")

// Login exchanges credentials for a session. Rejected credentials and
// network failures come back as LoginResult{Success: false} with the
// session untouched. Malformed responses and inconsistent profiles are
// returned as errors, also with the session untouched.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)

	tok, err := s.client.Login(platform.WithoutRefresh(ctx), email, password)
	if err != nil {
		return expectedLoginFailure(err)
	}
	cred := tok.Credential()
	if !cred.Valid() {
		return LoginResult{}, errors.NewMalformedResponseError(platform.PathLogin, errEmptyToken)
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	prev := s.state.Snapshot()
	prevHeader := s.client.DefaultHeader(platform.HeaderAuthorization)
	rollback := func() {
		if prevHeader == "" {
			s.client.DeleteDefaultHeader(platform.HeaderAuthorization)
		} else {
			s.client.SetDefaultHeader(platform.HeaderAuthorization, prevHeader)
		}
		var restoreErr error
		if prev.Token != nil {
			restoreErr = s.store.SaveCredential(ctx, *prev.Token)
		} else {
			restoreErr = s.store.ClearCredential(ctx)
		}
		if restoreErr != nil {
			s.logger.WithError(restoreErr).WarnContext(ctx, "could not roll back stored credential")
		}
	}

	if err := s.store.SaveCredential(ctx, cred); err != nil {
		return LoginResult{}, err
	}
	s.client.SetDefaultHeader(platform.HeaderAuthorization, cred.Header())

	profile, err := s.client.CurrentUser(platform.WithoutRefresh(ctx))
	if err != nil {
		rollback()
		return expectedLoginFailure(err)
	}
	if err := profile.Validate(); err != nil {
		rollback()
		return LoginResult{}, errors.NewProfileInvalidError(err)
	}
	if err := s.store.SaveProfile(ctx, *profile); err != nil {
		rollback()
		return LoginResult{}, err
	}

	s.writer.Authenticate(*profile, cred)
	s.logger.InfoContext(ctx, "login succeeded", credentialAttrs(cred, *profile)...)

	return LoginResult{
		Success:         true,
		IsVerified:      profile.IsVerified,
		HasOrganisation: profile.HasOrganisation(),
	}, nil
}

// expectedLoginFailure maps rejected credentials and transport failures to
// a result, and anything else to an error.
func expectedLoginFailure(err error) (LoginResult, error) {
	if apiErr, ok := platform.AsAPIError(err); ok {
		return LoginResult{Reason: orDefault(apiErr.Detail, reasonLoginFailed)}, nil
	}
	if errors.Is(err, errors.ErrCodeAPINetwork) {
		return LoginResult{Reason: reasonUnreachable}, nil
	}
	return LoginResult{}, err
}

// SignupInput holds the registration form.
type SignupInput struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Validate applies the backend's field rules locally.
func (in SignupInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Firstname, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Lastname, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Email, validation.Required, validation.Match(session.EmailPattern).Error("must be a valid email address")),
		validation.Field(&in.Password, validation.Required, validation.Length(8, 50)),
	)
}

// Signup registers an account. It never signs in: the backend requires
// the email to be verified first. Remembering the pending email is up to
// the caller.
func (s *Service) Signup(ctx context.Context, in SignupInput) (SignupResult, error) {
	in.Firstname = strings.TrimSpace(in.Firstname)
	in.Lastname = strings.TrimSpace(in.Lastname)
	in.Email = strings.TrimSpace(in.Email)

	if err := in.Validate(); err != nil {
		fields := map[string]string{}
		if verrs, ok := err.(validation.Errors); ok {
			for field, ferr := range verrs {
				fields[field] = ferr.Error()
			}
		}
		return SignupResult{Reason: err.Error(), FieldErrors: fields}, nil
	}

	profile, err := s.client.Register(ctx, platform.RegisterRequest{
		Firstname: in.Firstname,
		Lastname:  in.Lastname,
		Email:     in.Email,
		Password:  in.Password,
	})
	if err != nil {
		if apiErr, ok := platform.AsAPIError(err); ok {
			return SignupResult{Reason: orDefault(apiErr.Detail, reasonSignupFailed)}, nil
		}
		if errors.Is(err, errors.ErrCodeAPINetwork) {
			return SignupResult{Reason: reasonUnreachable}, nil
		}
		return SignupResult{}, err
	}

	s.logger.InfoContext(ctx, "account registered", "user_id", profile.ID)
	return SignupResult{Success: true, NeedsVerification: true, Email: in.Email}, nil
}

// VerifyEmail redeems a verification token. An empty token and a token
// refused by the server are reported as different failures. When a session
// is active the profile is reloaded so is_verified flips immediately.
// A signed-in account that is already verified gets VerifyAlreadyVerified
// without a request, since the backend would accept the token again.
func (s *Service) VerifyEmail(ctx context.Context, token string) (VerifyResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return VerifyResult{Failure: VerifyTokenMissing, Reason: reasonTokenMissing}, nil
	}
	if session.IsVerified(s.state.Snapshot()) {
		return VerifyResult{Failure: VerifyAlreadyVerified, Reason: reasonAlreadyVerified}, nil
	}

	if _, err := s.client.VerifyEmail(ctx, token); err != nil {
		if apiErr, ok := platform.AsAPIError(err); ok {
			return VerifyResult{Failure: VerifyTokenRejected, Reason: orDefault(apiErr.Detail, reasonTokenRejected)}, nil
		}
		if errors.Is(err, errors.ErrCodeAPINetwork) {
			return VerifyResult{Failure: VerifyUnavailable, Reason: reasonUnreachable}, nil
		}
		return VerifyResult{}, err
	}

	result := VerifyResult{Success: true}
	if s.state.Snapshot().IsAuthenticated {
		if _, err := s.RefreshUser(ctx); err != nil {
			s.logger.WithError(err).WarnContext(ctx, "email verified but profile refresh failed")
		} else {
			result.ProfileRefreshed = true
		}
	}
	return result, nil
}

// ResendVerification asks for a new verification email for the signed-in
// user. An already verified account is reported as its own failure.
func (s *Service) ResendVerification(ctx context.Context) (ResendResult, error) {
	snap := s.state.Snapshot()
	if !snap.IsAuthenticated {
		return ResendResult{}, errors.NewNotAuthenticatedError("resending the verification email")
	}
	if session.IsVerified(snap) {
		return ResendResult{Failure: ResendAlreadyVerified, Reason: reasonAlreadyVerified}, nil
	}

	msg, err := s.client.ResendVerification(ctx)
	if err != nil {
		apiErr, ok := platform.AsAPIError(err)
		switch {
		case ok && apiErr.StatusCode == 400:
			// Verified elsewhere since our last fetch.
			if _, refreshErr := s.RefreshUser(ctx); refreshErr != nil {
				s.logger.WithError(refreshErr).WarnContext(ctx, "profile refresh after resend failed")
			}
			return ResendResult{Failure: ResendAlreadyVerified, Reason: apiErr.Detail}, nil
		case ok:
			return ResendResult{Failure: ResendRejected, Reason: apiErr.Detail}, nil
		case errors.Is(err, errors.ErrCodeAPINetwork):
			return ResendResult{Failure: ResendUnavailable, Reason: reasonUnreachable}, nil
		default:
			return ResendResult{}, err
		}
	}
	return ResendResult{Success: true, Email: orDefault(msg.Email, snap.User.Email)}, nil
}

// CreateOrganisation creates an organisation owned by the signed-in user
// and reloads the profile, which now carries organisation_id and is_owner.
func (s *Service) CreateOrganisation(ctx context.Context, name string) (OrganisationResult, error) {
	if !s.state.Snapshot().IsAuthenticated {
		return OrganisationResult{}, errors.NewNotAuthenticatedError("creating an organisation")
	}
	name = strings.TrimSpace(name)
	if err := validation.Validate(name, validation.Required, validation.Length(1, 50)); err != nil {
		return OrganisationResult{Reason: "name: " + err.Error()}, nil
	}

	created, err := s.client.CreateOrganisation(ctx, name)
	if err != nil {
		return organisationFailure(err)
	}

	profile, err := s.RefreshUser(ctx)
	if err != nil {
		return OrganisationResult{}, err
	}
	s.logger.InfoContext(ctx, "organisation created", "organisation_id", created.Organisation.ID)
	return OrganisationResult{Success: true, Organisation: &created.Organisation, Profile: profile}, nil
}

// JoinOrganisation files a join request with an invitation code and
// reloads the profile. The result is Pending until an owner accepts.
func (s *Service) JoinOrganisation(ctx context.Context, code string) (OrganisationResult, error) {
	if !s.state.Snapshot().IsAuthenticated {
		return OrganisationResult{}, errors.NewNotAuthenticatedError("joining an organisation")
	}
	code = platform.NormaliseCode(code)
	if err := validation.Validate(code, validation.Required); err != nil {
		return OrganisationResult{Reason: "code: " + err.Error()}, nil
	}

	msg, err := s.client.JoinOrganisation(ctx, code)
	if err != nil {
		return organisationFailure(err)
	}

	profile, err := s.RefreshUser(ctx)
	if err != nil {
		return OrganisationResult{}, err
	}
	return OrganisationResult{
		Success: true,
		Reason:  msg.Message,
		Pending: !profile.HasOrganisation(),
		Profile: profile,
	}, nil
}

func organisationFailure(err error) (OrganisationResult, error) {
	if apiErr, ok := platform.AsAPIError(err); ok {
		return OrganisationResult{Reason: apiErr.Detail}, nil
	}
	if errors.Is(err, errors.ErrCodeAPINetwork) {
		return OrganisationResult{Reason: reasonUnreachable}, nil
	}
	return OrganisationResult{}, err
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
