package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/tenderdesk/internal/guard"
	"github.com/felixgeelhaar/tenderdesk/internal/session"
	"github.com/felixgeelhaar/tenderdesk/internal/ux"
)

// profileView is the printable form of a profile.
type profileView struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Email          string `json:"email" yaml:"email"`
	Verified       bool   `json:"is_verified" yaml:"is_verified"`
	OrganisationID string `json:"organisation_id,omitempty" yaml:"organisation_id,omitempty"`
	Owner          bool   `json:"is_owner" yaml:"is_owner"`
}

func newProfileView(p session.Profile) *profileView {
	v := &profileView{
		ID:       p.ID,
		Name:     p.DisplayName(),
		Email:    p.Email,
		Verified: p.IsVerified,
		Owner:    p.IsOwner,
	}
	if p.HasOrganisation() {
		v.OrganisationID = *p.OrganisationID
	}
	return v
}

func (v *profileView) fields() map[string]string {
	org := v.OrganisationID
	if org == "" {
		org = "none"
	}
	return map[string]string{
		"User":         v.Name,
		"Email":        v.Email,
		"Verified":     yesNo(v.Verified),
		"Organisation": org,
		"Owner":        yesNo(v.Owner),
	}
}

func (v *profileView) Text() string {
	return ux.KeyValues(v.fields())
}

// statusView is the output of 'auth status'.
type statusView struct {
	Authenticated       bool         `json:"authenticated" yaml:"authenticated"`
	Store               string       `json:"store" yaml:"store"`
	User                *profileView `json:"user,omitempty" yaml:"user,omitempty"`
	ExpiresAt           *time.Time   `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	PendingVerification string       `json:"pending_verification,omitempty" yaml:"pending_verification,omitempty"`
	Next                string       `json:"next,omitempty" yaml:"next,omitempty"`
}

func (v *statusView) Text() string {
	fields := map[string]string{
		"Signed in": yesNo(v.Authenticated),
		"Store":     v.Store,
	}
	if v.User != nil {
		for k, val := range v.User.fields() {
			fields[k] = val
		}
	}
	if v.ExpiresAt != nil {
		fields["Token expires"] = v.ExpiresAt.Local().Format(time.RFC1123)
	}
	if v.PendingVerification != "" {
		fields["Awaiting verification"] = v.PendingVerification
	}
	if v.Next != "" {
		fields["Next"] = v.Next
	}
	return ux.KeyValues(fields)
}

// actionView reports the outcome of a command that changed something.
type actionView struct {
	Message string       `json:"message" yaml:"message"`
	User    *profileView `json:"user,omitempty" yaml:"user,omitempty"`
	Next    string       `json:"next,omitempty" yaml:"next,omitempty"`
}

func (v *actionView) Text() string {
	var b strings.Builder
	b.WriteString(v.Message)
	b.WriteString("\n")
	if v.User != nil {
		b.WriteString("\n")
		b.WriteString(v.User.Text())
	}
	if v.Next != "" {
		b.WriteString("\nNext: ")
		b.WriteString(v.Next)
		b.WriteString("\n")
	}
	return b.String()
}

// routeView is one screen and the guard's verdict on it.
type routeView struct {
	Screen   guard.Screen   `json:"screen" yaml:"screen"`
	Class    guard.Class    `json:"class" yaml:"class"`
	Decision guard.Decision `json:"decision" yaml:"decision"`
	Lands    guard.Screen   `json:"lands_on" yaml:"lands_on"`
}

type routeTable struct {
	Routes []routeView `json:"routes" yaml:"routes"`
}

func (t *routeTable) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-22s %-24s %-10s %s\n", "SCREEN", "CLASS", "OUTCOME", "LANDS ON")
	for _, r := range t.Routes {
		fmt.Fprintf(&b, "%-22s %-24s %-10s %s\n", r.Screen, r.Class, r.Decision.Outcome, r.Lands)
	}
	return b.String()
}

func (r *routeView) Text() string {
	fields := map[string]string{
		"Screen":   r.Screen.String(),
		"Class":    string(r.Class),
		"Decision": r.Decision.String(),
		"Lands on": r.Lands.String(),
	}
	return ux.KeyValues(fields)
}

type membersView struct {
	Members []*profileView `json:"members" yaml:"members"`
}

func (v *membersView) Text() string {
	if len(v.Members) == 0 {
		return "No members yet.\n"
	}
	var b strings.Builder
	for _, m := range v.Members {
		role := "member"
		if m.Owner {
			role = "owner"
		}
		fmt.Fprintf(&b, "%-28s %-32s %s\n", m.Name, m.Email, role)
	}
	return b.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
