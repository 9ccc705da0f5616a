package guard

import "sort"

// Routes is the per-screen declaration table. It is built once at
// startup and read afterwards.
type Routes struct {
	classes map[Screen]Class
}

// NewRoutes returns an empty table.
func NewRoutes() *Routes {
	return &Routes{classes: make(map[Screen]Class)}
}

// DefaultRoutes declares the class of every screen the client ships.
func DefaultRoutes() *Routes {
	r := NewRoutes()
	r.Declare(ScreenHome, ClassGuest)
	r.Declare(ScreenLogin, ClassGuest)
	r.Declare(ScreenSignup, ClassGuest)
	r.Declare(ScreenVerifyEmail, ClassPublic)
	r.Declare(ScreenVerifyPrompt, ClassVerificationPrompt)
	r.Declare(ScreenOrganisationChoice, ClassOnboarding)
	r.Declare(ScreenCreateOrganisation, ClassOnboarding)
	r.Declare(ScreenJoinOrganisation, ClassOnboarding)
	r.Declare(ScreenDashboard, ClassRequiresOrganisation)
	r.Declare(ScreenSettings, ClassRequiresOrganisation)
	r.Declare(ScreenMembers, ClassRequiresOwner)
	return r
}

// Declare sets the class of a screen, replacing any earlier declaration.
func (r *Routes) Declare(s Screen, c Class) {
	r.classes[s] = c
}

// ClassOf returns the declared class of s.
func (r *Routes) ClassOf(s Screen) (Class, bool) {
	c, ok := r.classes[s]
	return c, ok
}

// RequirementFor resolves the requirement of s. ok is false when s is not
// declared or its class is unknown.
func (r *Routes) RequirementFor(s Screen) (Requirement, bool) {
	c, ok := r.classes[s]
	if !ok {
		return Requirement{}, false
	}
	return c.Requirement()
}

// Declared lists the declared screens sorted by name.
func (r *Routes) Declared() []Screen {
	out := make([]Screen, 0, len(r.classes))
	for s := range r.classes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
