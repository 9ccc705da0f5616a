// Package account implements the client side of authentication: restoring
// a stored session, login, signup, email verification, logout, profile
// refresh, organisation onboarding and the transparent credential refresh
// applied to every outbound request.
//
// Service is the only writer of the session Manager and the credential
// Store. Everything else reads session snapshots.
package account

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/tenderdesk/internal/credstore"
	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/log"
	"github.com/felixgeelhaar/tenderdesk/internal/platform"
	"github.com/felixgeelhaar/tenderdesk/internal/session"
)

// Service owns the session writer, the credential store and the API client.
type Service struct {
	state  *session.Manager
	writer *session.Writer
	store  *credstore.Store
	client *platform.Client
	logger *log.Logger

	// persistMu pairs each state change with its store write. It is never
	// held across a refreshable network call.
	persistMu sync.Mutex
	refreshes singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New wires a Service and installs its refresh middleware on client.
func New(state *session.Manager, writer *session.Writer, store *credstore.Store, client *platform.Client, opts ...Option) *Service {
	s := &Service{
		state:  state,
		writer: writer,
		store:  store,
		client: client,
		logger: log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Component("account")
	client.Use(s.RefreshMiddleware())
	return s
}

// Session returns the read-only session view.
func (s *Service) Session() session.Reader {
	return s.state
}

// SessionUpdates subscribes to session changes. See session.Manager.Subscribe.
func (s *Service) SessionUpdates() (<-chan session.State, func()) {
	return s.state.Subscribe()
}

// Client returns the API client, already wired with the refresh middleware.
func (s *Service) Client() *platform.Client {
	return s.client
}

// Restore seeds the session from the credential store. It always leaves
// IsLoading false. Absent entries yield the anonymous state without error;
// unreadable or inconsistent entries also yield the anonymous state and
// the cause is returned for the caller to report.
func (s *Service) Restore(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	cred, err := s.store.LoadCredential(ctx)
	if err != nil {
		s.resetLocked()
		return err
	}
	profile, err := s.store.LoadProfile(ctx)
	if err != nil {
		s.resetLocked()
		return err
	}
	if cred == nil || profile == nil || !cred.Valid() {
		s.resetLocked()
		s.logger.DebugContext(ctx, "no stored session", "backend", s.store.Backend())
		return nil
	}
	if err := profile.Validate(); err != nil {
		s.resetLocked()
		if clearErr := s.store.Clear(ctx); clearErr != nil {
			s.logger.WithError(clearErr).Warn("could not discard invalid stored session")
		}
		return errors.NewProfileInvalidError(err)
	}

	s.client.SetDefaultHeader(platform.HeaderAuthorization, cred.Header())
	s.writer.Authenticate(*profile, *cred)
	s.logger.InfoContext(ctx, "session restored", credentialAttrs(*cred, *profile)...)
	return nil
}

// Logout drops the session locally, then asks the backend to revoke the
// refresh cookie. Calling it while signed out is a no-op. A failed server
// call is only logged; a failed store clear is returned.
func (s *Service) Logout(ctx context.Context) error {
	s.persistMu.Lock()
	prev := s.state.Snapshot()
	s.client.DeleteDefaultHeader(platform.HeaderAuthorization)
	err := s.store.Clear(ctx)
	s.resetLocked()
	s.persistMu.Unlock()

	if !prev.IsAuthenticated {
		return err
	}
	s.logger.InfoContext(ctx, "logged out", "user_id", prev.User.ID)

	if prev.Token.Refresh != "" {
		if serverErr := s.client.Logout(platform.WithoutRefresh(ctx), prev.Token.Refresh); serverErr != nil {
			s.logger.WithError(serverErr).WarnContext(ctx, "server logout failed")
		}
	}
	return err
}

// RefreshUser refetches the profile under the current credential and
// replaces both the session user and the cached profile.
func (s *Service) RefreshUser(ctx context.Context) (*session.Profile, error) {
	before := s.state.Snapshot()
	if !before.IsAuthenticated {
		return nil, errors.NewNotAuthenticatedError("refreshing the profile")
	}

	profile, err := s.client.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, errors.NewProfileInvalidError(err)
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if !s.writer.ReplaceUser(*profile) {
		return nil, errors.NewNotAuthenticatedError("refreshing the profile")
	}
	if err := s.store.SaveProfile(ctx, *profile); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "profile refreshed",
		"user_id", profile.ID,
		"changed", before.User.Digest() != profile.Digest(),
	)
	return profile, nil
}

// resetLocked publishes the anonymous state. persistMu must be held.
func (s *Service) resetLocked() {
	s.client.DeleteDefaultHeader(platform.HeaderAuthorization)
	s.writer.Reset()
}

// credentialAttrs describes a session for logs without leaking secrets.
func credentialAttrs(c session.Credential, p session.Profile) []any {
	attrs := []any{
		"user_id", p.ID,
		"scheme", c.Scheme,
		"verified", p.IsVerified,
		"has_organisation", p.HasOrganisation(),
	}
	if exp, ok := c.Expiry(); ok {
		attrs = append(attrs, "expires_at", exp)
	}
	return attrs
}
