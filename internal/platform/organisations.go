package platform

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/tenderdesk/internal/session"
)

// Organisation endpoint paths.
const (
	PathCreateOrganisation = "/organisations/create"
	PathJoinOrganisation   = "/organisations/join"
	PathMembers            = "/organisations/members"
)

// Organisation is a tenant owning tender folders.
type Organisation struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	CreatedAt   time.Time `json:"created_at"`
	MemberCount int       `json:"member_count,omitempty"`
}

// CreateOrganisationResponse carries the new organisation and the
// creator's updated profile.
type CreateOrganisationResponse struct {
	Organisation Organisation    `json:"organisation"`
	User         session.Profile `json:"user"`
}

// CreateOrganisation creates an organisation owned by the caller.
func (c *Client) CreateOrganisation(ctx context.Context, name string) (*CreateOrganisationResponse, error) {
	var out CreateOrganisationResponse
	body := map[string]string{"name": strings.TrimSpace(name)}
	if _, err := c.call(ctx, http.MethodPost, PathCreateOrganisation, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JoinOrganisation files a join request for the organisation with the
// given invitation code. Membership is granted later by an owner.
func (c *Client) JoinOrganisation(ctx context.Context, code string) (*MessageResponse, error) {
	var out MessageResponse
	body := map[string]string{"code": NormaliseCode(code)}
	if _, err := c.call(ctx, http.MethodPost, PathJoinOrganisation, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMembers returns the members of the caller's organisation.
func (c *Client) ListMembers(ctx context.Context) ([]session.Profile, error) {
	var out []session.Profile
	if _, err := c.call(ctx, http.MethodGet, PathMembers, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NormaliseCode trims and upper-cases an invitation code.
func NormaliseCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
