package platform

import (
	"context"
	"net/http"

	"github.com/felixgeelhaar/tenderdesk/internal/session"
)

// Endpoint paths.
const (
	PathLogin              = "/auth/login"
	PathRefresh            = "/auth/refresh"
	PathMe                 = "/auth/me"
	PathRegister           = "/auth/register"
	PathVerifyEmail        = "/auth/verify-email"
	PathResendVerification = "/auth/resend-verification"
	PathLogout             = "/auth/logout"
)

// RefreshCookie is the HttpOnly cookie carrying the refresh artifact.
const RefreshCookie = "refresh_token"

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by login and refresh. RefreshToken is filled
// from the refresh cookie when the server set one.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"-"`
}

// Credential converts the response into a session credential.
func (t *TokenResponse) Credential() session.Credential {
	c := session.NewBearer(t.AccessToken, t.RefreshToken)
	if t.TokenType != "" {
		c.Scheme = t.TokenType
	}
	return c
}

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// MessageResponse is the generic {"message": ...} acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

// Login exchanges email and password for a bearer token and refresh cookie.
// It does not touch the client's default headers.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	var out TokenResponse
	resp, err := c.call(ctx, http.MethodPost, PathLogin, LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	if cookie, ok := resp.Cookie(RefreshCookie); ok {
		out.RefreshToken = cookie.Value
	}
	return &out, nil
}

// Refresh exchanges the refresh artifact for a new bearer token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	req, err := NewRequest(http.MethodPost, PathRefresh, nil)
	if err != nil {
		return nil, err
	}
	if refreshToken != "" {
		req.Header.Set("Cookie", (&http.Cookie{Name: RefreshCookie, Value: refreshToken}).String())
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out TokenResponse
	if err := Decode(resp, PathRefresh, &out); err != nil {
		return nil, err
	}
	out.RefreshToken = refreshToken
	if cookie, ok := resp.Cookie(RefreshCookie); ok && cookie.Value != "" {
		out.RefreshToken = cookie.Value
	}
	return &out, nil
}

// CurrentUser fetches the profile of the bearer's owner.
func (c *Client) CurrentUser(ctx context.Context) (*session.Profile, error) {
	var p session.Profile
	if _, err := c.call(ctx, http.MethodGet, PathMe, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Register creates an unverified account. It never logs in.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*session.Profile, error) {
	var p session.Profile
	if _, err := c.call(ctx, http.MethodPost, PathRegister, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// VerifyEmail redeems a one-time verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) (*MessageResponse, error) {
	var out MessageResponse
	if _, err := c.call(ctx, http.MethodPost, PathVerifyEmail, map[string]string{"token": token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResendVerification asks the backend to mail a fresh verification link.
func (c *Client) ResendVerification(ctx context.Context) (*MessageResponse, error) {
	var out MessageResponse
	if _, err := c.call(ctx, http.MethodPost, PathResendVerification, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout asks the backend to drop the refresh cookie.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	req, err := NewRequest(http.MethodPost, PathLogout, nil)
	if err != nil {
		return err
	}
	if refreshToken != "" {
		req.Header.Set("Cookie", (&http.Cookie{Name: RefreshCookie, Value: refreshToken}).String())
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return Decode(resp, PathLogout, nil)
}
