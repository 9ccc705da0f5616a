package guard

import "fmt"

// Screen identifies a destination in the client.
type Screen string

const (
	ScreenHome               Screen = "home"
	ScreenLogin              Screen = "login"
	ScreenSignup             Screen = "signup"
	ScreenVerifyEmail        Screen = "verify-email"
	ScreenVerifyPrompt       Screen = "verify-prompt"
	ScreenOrganisationChoice Screen = "organisation-choice"
	ScreenCreateOrganisation Screen = "create-organisation"
	ScreenJoinOrganisation   Screen = "join-organisation"
	ScreenDashboard          Screen = "dashboard"
	ScreenSettings           Screen = "settings"
	ScreenMembers            Screen = "members"
)

// Screens lists every known screen in menu order.
func Screens() []Screen {
	return []Screen{
		ScreenHome,
		ScreenLogin,
		ScreenSignup,
		ScreenVerifyEmail,
		ScreenVerifyPrompt,
		ScreenOrganisationChoice,
		ScreenCreateOrganisation,
		ScreenJoinOrganisation,
		ScreenDashboard,
		ScreenSettings,
		ScreenMembers,
	}
}

// ParseScreen validates a screen name.
func ParseScreen(name string) (Screen, error) {
	s := Screen(name)
	if err := s.Validate(); err != nil {
		return "", err
	}
	return s, nil
}

// Validate checks that s is a known screen.
func (s Screen) Validate() error {
	for _, known := range Screens() {
		if s == known {
			return nil
		}
	}
	return fmt.Errorf("unknown screen %q", string(s))
}

// String returns the screen name.
func (s Screen) String() string {
	return string(s)
}

// Class groups screens that share an access requirement.
type Class string

const (
	// ClassPublic screens render for everyone, e.g. the token redemption
	// page reached from an email link.
	ClassPublic Class = "public"
	// ClassGuest screens are for visitors; signed-in users are sent on.
	ClassGuest                Class = "guest"
	ClassRequiresAuth         Class = "requires-auth"
	ClassRequiresVerified     Class = "requires-verified"
	ClassVerificationPrompt   Class = "verification-prompt"
	ClassOnboarding           Class = "onboarding"
	ClassRequiresOrganisation Class = "requires-organisation"
	ClassRequiresOwner        Class = "requires-owner"
)

// Requirement is the flag form of a Class that Evaluate works on.
type Requirement struct {
	Guest              bool
	Authenticated      bool
	Verified           bool
	ForbidVerified     bool
	ForbidOrganisation bool
	Organisation       bool
	Owner              bool
	// AllowPendingVerification lets a visitor holding a pending
	// verification marker past the authentication rule.
	AllowPendingVerification bool
}

// Requirement returns the flags for c. ok is false for an unknown class.
func (c Class) Requirement() (Requirement, bool) {
	switch c {
	case ClassPublic:
		return Requirement{}, true
	case ClassGuest:
		return Requirement{Guest: true}, true
	case ClassRequiresAuth:
		return Requirement{Authenticated: true}, true
	case ClassRequiresVerified:
		return Requirement{Authenticated: true, Verified: true}, true
	case ClassVerificationPrompt:
		return Requirement{Authenticated: true, ForbidVerified: true, AllowPendingVerification: true}, true
	case ClassOnboarding:
		return Requirement{Authenticated: true, Verified: true, ForbidOrganisation: true}, true
	case ClassRequiresOrganisation:
		return Requirement{Authenticated: true, Verified: true, Organisation: true}, true
	case ClassRequiresOwner:
		return Requirement{Authenticated: true, Verified: true, Organisation: true, Owner: true}, true
	default:
		return Requirement{}, false
	}
}

// Consistent reports whether the flags can be satisfied together.
func (r Requirement) Consistent() bool {
	needsSession := r.Verified || r.ForbidVerified || r.Organisation || r.ForbidOrganisation || r.Owner
	switch {
	case needsSession && !r.Authenticated:
		return false
	case r.Guest && r.Authenticated:
		return false
	case r.Verified && r.ForbidVerified:
		return false
	case r.Organisation && r.ForbidOrganisation:
		return false
	case r.Owner && !r.Organisation:
		return false
	case r.AllowPendingVerification && !r.ForbidVerified:
		return false
	}
	return true
}
