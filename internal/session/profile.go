package session

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/zeebo/blake3"
)

// EmailPattern is a format-only email check. is.Email resolves MX records,
// which a client has no business doing.
var EmailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Profile is the backend's view of the signed-in user. It is replaced
// whole on every fetch and never patched field by field.
type Profile struct {
	ID             string  `json:"id"`
	Firstname      string  `json:"firstname"`
	Lastname       string  `json:"lastname"`
	Email          string  `json:"email"`
	IsVerified     bool    `json:"is_verified"`
	OrganisationID *string `json:"organisation_id"`
	IsOwner        bool    `json:"is_owner"`
}

// Validate rejects snapshots that break the profile invariants, most
// importantly an owner without an organisation.
func (p Profile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required, is.UUID),
		validation.Field(&p.Email, validation.Required, validation.Match(EmailPattern)),
		validation.Field(&p.IsOwner, validation.By(func(interface{}) error {
			if p.IsOwner && !p.HasOrganisation() {
				return fmt.Errorf("owner must belong to an organisation")
			}
			return nil
		})),
	)
}

// HasOrganisation reports whether organisation_id is present.
func (p Profile) HasOrganisation() bool {
	return p.OrganisationID != nil && *p.OrganisationID != ""
}

// DisplayName is "Firstname Lastname", falling back to the email.
func (p Profile) DisplayName() string {
	if p.Firstname == "" && p.Lastname == "" {
		return p.Email
	}
	return p.Firstname + " " + p.Lastname
}

// Digest is a blake3 hash of the JSON snapshot. Two fetches with equal
// digests returned the same profile.
func (p Profile) Digest() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Clone returns a deep copy so snapshots never share the organisation pointer.
func (p Profile) Clone() Profile {
	out := p
	if p.OrganisationID != nil {
		org := *p.OrganisationID
		out.OrganisationID = &org
	}
	return out
}
