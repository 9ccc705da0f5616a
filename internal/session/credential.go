package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SchemeBearer is the only scheme the backend issues today.
const SchemeBearer = "bearer"

// Credential is the bearer credential presented on every request plus the
// refresh artifact captured at login. Both strings are opaque to callers.
type Credential struct {
	Scheme  string `json:"scheme"`
	Token   string `json:"token"`
	Refresh string `json:"refresh,omitempty"`
}

// NewBearer builds a bearer credential.
func NewBearer(token, refresh string) Credential {
	return Credential{Scheme: SchemeBearer, Token: token, Refresh: refresh}
}

// Header renders the Authorization header value, e.g. "bearer eyJ...".
func (c Credential) Header() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = SchemeBearer
	}
	return scheme + " " + c.Token
}

// Valid reports whether the credential carries a token at all.
func (c Credential) Valid() bool {
	return strings.TrimSpace(c.Token) != ""
}

// Expiry reads the exp claim without verifying the signature. It is used
// for display only; the server decides whether a token is still good.
func (c Credential) Expiry() (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// WithToken returns a copy carrying a new access token. The refresh
// artifact is kept unless the exchange rotated it.
func (c Credential) WithToken(token, refresh string) Credential {
	next := c
	next.Token = token
	if refresh != "" {
		next.Refresh = refresh
	}
	if next.Scheme == "" {
		next.Scheme = SchemeBearer
	}
	return next
}
