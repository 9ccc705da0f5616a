package account

import (
	"context"
	"net/http"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/platform"
)

// RefreshMiddleware returns the platform middleware that renews an expired
// bearer credential and replays the failed request once.
//
// A 401 is handed back untouched when it answers the refresh exchange
// itself, a request that was already replayed, a context marked with
// platform.WithoutRefresh, or a request made while nobody is signed in.
// Otherwise concurrent failures under the same credential share a single
// refresh exchange. If that exchange fails the session is logged out once
// and every waiter gets its original 401 back.
func (s *Service) RefreshMiddleware() platform.Middleware {
	return func(next platform.Handler) platform.Handler {
		return func(ctx context.Context, req *platform.Request) (*platform.Response, error) {
			resp, err := next(ctx, req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}
			if req.IsRefresh() || req.Retried || platform.RefreshDisabled(ctx) {
				return resp, nil
			}

			header, ok := s.renewedHeader(ctx, req.Header.Get(platform.HeaderAuthorization))
			if !ok {
				return resp, nil
			}

			replay := req.Clone()
			replay.Retried = true
			replay.Header.Set(platform.HeaderAuthorization, header)
			s.logger.DebugContext(ctx, "replaying request with renewed credential", "path", req.Path)
			return next(ctx, replay)
		}
	}
}

// renewedHeader returns the Authorization value to replay with after
// failed was refused. ok is false when the request should fail as is.
func (s *Service) renewedHeader(ctx context.Context, failed string) (string, bool) {
	cur := s.state.Snapshot()
	if !cur.IsAuthenticated {
		return "", false
	}
	// Already renewed by an earlier flight.
	if h := cur.Token.Header(); h != failed {
		return h, true
	}

	// The flight outlives any single caller's cancellation.
	v, err, shared := s.refreshes.Do(failed, func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx), failed)
	})
	if err != nil {
		return "", false
	}
	if shared {
		s.logger.DebugContext(ctx, "joined in-flight credential refresh")
	}
	return v.(string), true
}

// refresh performs one refresh exchange for the credential rendered as
// failed. Only one runs at a time per credential.
func (s *Service) refresh(ctx context.Context, failed string) (string, error) {
	cur := s.state.Snapshot()
	if !cur.IsAuthenticated {
		return "", errors.NewNotAuthenticatedError("refreshing the credential")
	}
	// A flight for this credential finished between our snapshot and Do.
	if h := cur.Token.Header(); h != failed {
		return h, nil
	}

	tok, err := s.client.Refresh(ctx, cur.Token.Refresh)
	if err == nil && tok.AccessToken == "" {
		err = errors.NewMalformedResponseError(platform.PathRefresh, errEmptyToken)
	}
	if err != nil {
		s.logger.WithError(err).WarnContext(ctx, "credential refresh failed, signing out")
		if logoutErr := s.Logout(ctx); logoutErr != nil {
			s.logger.WithError(logoutErr).ErrorContext(ctx, "logout after failed refresh")
		}
		return "", errors.NewRefreshFailedError(err)
	}

	renewed := cur.Token.WithToken(tok.AccessToken, tok.RefreshToken)
	if tok.TokenType != "" {
		renewed.Scheme = tok.TokenType
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	// A logout that raced the exchange wins.
	if !s.writer.ReplaceToken(renewed) {
		return "", errors.NewNotAuthenticatedError("refreshing the credential")
	}
	s.client.SetDefaultHeader(platform.HeaderAuthorization, renewed.Header())
	if err := s.store.SaveCredential(ctx, renewed); err != nil {
		s.logger.WithError(err).WarnContext(ctx, "could not persist renewed credential")
	}

	attrs := []any{"scheme", renewed.Scheme}
	if exp, ok := renewed.Expiry(); ok {
		attrs = append(attrs, "expires_at", exp)
	}
	s.logger.InfoContext(ctx, "credential refreshed", attrs...)
	return renewed.Header(), nil
}
