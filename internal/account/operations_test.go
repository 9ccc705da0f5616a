package account

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/platform"
	"github.com/felixgeelhaar/tenderdesk/internal/platform/platformtest"
	"github.com/felixgeelhaar/tenderdesk/internal/session"
)

func validSignup(email string) SignupInput {
	return SignupInput{Firstname: "Ada", Lastname: "Lovelace", Email: email, Password: testPassword}
}

func TestSignupValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SignupInput)
		field  string
	}{
		{name: "missing firstname", mutate: func(in *SignupInput) { in.Firstname = "  " }, field: "firstname"},
		{name: "long lastname", mutate: func(in *SignupInput) { in.Lastname = strings.Repeat("x", 101) }, field: "lastname"},
		{name: "bad email", mutate: func(in *SignupInput) { in.Email = "not-an-email" }, field: "email"},
		{name: "short password", mutate: func(in *SignupInput) { in.Password = "short" }, field: "password"},
		{name: "long password", mutate: func(in *SignupInput) { in.Password = strings.Repeat("p", 51) }, field: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validSignup("ada@example.com")
			tt.mutate(&in)

			res, err := f.svc.Signup(context.Background(), in)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Contains(t, res.FieldErrors, tt.field)
			assert.Zero(t, f.backend.Calls(platform.PathRegister))
		})
	}
}

func TestSignup(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Signup(context.Background(), validSignup(" ada@example.com "))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.NeedsVerification)
	assert.Equal(t, "ada@example.com", res.Email)
	assert.NotEmpty(t, f.backend.VerificationToken("ada@example.com"))
	assertAnonymous(t, f)
}

func TestSignupVerifiedAccountExists(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser(platformtest.UserSeed{Email: "ada@example.com", Password: testPassword, Verified: true})

	res, err := f.svc.Signup(context.Background(), validSignup("ada@example.com"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "existe déjà")
}

func TestVerifyEmail(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.VerifyEmail(context.Background(), "   ")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, VerifyTokenMissing, res.Failure)
		assert.Zero(t, f.backend.Calls(platform.PathVerifyEmail))
	})

	t.Run("rejected token", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.VerifyEmail(context.Background(), "nope")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, VerifyTokenRejected, res.Failure)
		assert.Equal(t, "Jeton invalide ou expiré", res.Reason)
	})

	t.Run("anonymous success", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Signup(context.Background(), validSignup("ada@example.com"))
		require.NoError(t, err)

		res, err := f.svc.VerifyEmail(context.Background(), f.backend.VerificationToken("ada@example.com"))
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.False(t, res.ProfileRefreshed)
		assert.Zero(t, f.backend.Calls(platform.PathMe))
	})

	t.Run("signed in success refreshes profile", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Signup(context.Background(), validSignup("ada@example.com"))
		require.NoError(t, err)
		login, err := f.svc.Login(context.Background(), "ada@example.com", testPassword)
		require.NoError(t, err)
		require.True(t, login.Success)
		require.False(t, login.IsVerified)

		res, err := f.svc.VerifyEmail(context.Background(), f.backend.VerificationToken("ada@example.com"))
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.True(t, res.ProfileRefreshed)
		assert.True(t, session.IsVerified(f.state.Snapshot()))
	})

	t.Run("redeeming twice is reported", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Signup(context.Background(), validSignup("ada@example.com"))
		require.NoError(t, err)
		login, err := f.svc.Login(context.Background(), "ada@example.com", testPassword)
		require.NoError(t, err)
		require.True(t, login.Success)

		token := f.backend.VerificationToken("ada@example.com")
		first, err := f.svc.VerifyEmail(context.Background(), token)
		require.NoError(t, err)
		require.True(t, first.Success)
		calls := f.backend.Calls(platform.PathVerifyEmail)

		second, err := f.svc.VerifyEmail(context.Background(), token)
		require.NoError(t, err)
		assert.False(t, second.Success)
		assert.Equal(t, VerifyAlreadyVerified, second.Failure)
		assert.Equal(t, "already verified", second.Failure.String())
		assert.Equal(t, calls, f.backend.Calls(platform.PathVerifyEmail))
	})
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ResendVerification(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCodeAuthNotAuthenticated))

	f.signIn(t, platformtest.UserSeed{Email: "ada@example.com"})

	res, err := f.svc.ResendVerification(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ada@example.com", res.Email)

	// Verified out of band: the server refuses and the profile catches up.
	f.backend.SetProfile("ada@example.com", func(p *session.Profile) { p.IsVerified = true })
	res, err = f.svc.ResendVerification(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ResendAlreadyVerified, res.Failure)
	assert.True(t, session.IsVerified(f.state.Snapshot()))

	// Known locally now, so no request is made.
	calls := f.backend.Calls(platform.PathResendVerification)
	res, err = f.svc.ResendVerification(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResendAlreadyVerified, res.Failure)
	assert.Equal(t, calls, f.backend.Calls(platform.PathResendVerification))
}

func TestCreateOrganisation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrganisation(context.Background(), "Acme")
	assert.True(t, errors.Is(err, errors.ErrCodeAuthNotAuthenticated))

	f.signIn(t, platformtest.UserSeed{Email: "ada@example.com", Verified: true})

	res, err := f.svc.CreateOrganisation(context.Background(), "  ")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, f.backend.Calls(platform.PathCreateOrganisation))

	res, err = f.svc.CreateOrganisation(context.Background(), " Acme ")
	require.NoError(t, err)
	require.True(t, res.Success, res.Reason)
	require.NotNil(t, res.Organisation)
	assert.Equal(t, "Acme", res.Organisation.Name)

	snap := f.state.Snapshot()
	assert.True(t, session.HasOrganisation(snap))
	assert.True(t, session.IsOwner(snap))
	assert.Equal(t, res.Organisation.ID, *snap.User.OrganisationID)

	res, err = f.svc.CreateOrganisation(context.Background(), "Second")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Vous appartenez déjà à une organisation", res.Reason)
}

func TestCreateOrganisationRequiresVerifiedEmail(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, platformtest.UserSeed{Email: "ada@example.com"})

	res, err := f.svc.CreateOrganisation(context.Background(), "Acme")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Email non verifié", res.Reason)
	assert.False(t, session.HasOrganisation(f.state.Snapshot()))
}

func TestJoinOrganisation(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser(platformtest.UserSeed{Email: "owner@example.com", Password: testPassword, Verified: true, Owner: true})
	code := f.backend.OrganisationCode("owner@example.com")
	require.NotEmpty(t, code)

	f.signIn(t, platformtest.UserSeed{Email: "ada@example.com", Verified: true})

	res, err := f.svc.JoinOrganisation(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, res.Success)

	res, err = f.svc.JoinOrganisation(context.Background(), "ZZZZZZ")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Code d'organisation invalide", res.Reason)

	res, err = f.svc.JoinOrganisation(context.Background(), " "+strings.ToLower(code)+" ")
	require.NoError(t, err)
	require.True(t, res.Success, res.Reason)
	assert.True(t, res.Pending)
	assert.False(t, session.HasOrganisation(f.state.Snapshot()))

	require.True(t, f.backend.AcceptJoin("ada@example.com"))
	_, err = f.svc.RefreshUser(context.Background())
	require.NoError(t, err)
	snap := f.state.Snapshot()
	assert.True(t, session.HasOrganisation(snap))
	assert.False(t, session.IsOwner(snap))
}
