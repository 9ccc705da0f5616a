package session

// State is an immutable snapshot of the session. Values are produced only
// by the constructors below, so IsAuthenticated always equals
// User != nil && Token != nil. Callers must not modify the pointees.
type State struct {
	User            *Profile
	Token           *Credential
	IsAuthenticated bool
	IsLoading       bool
}

// Loading is the state before the credential store has been read.
func Loading() State {
	return State{IsLoading: true}
}

// Anonymous is the signed-out state.
func Anonymous() State {
	return State{}
}

// Authenticated builds a signed-in state from private copies of its inputs.
func Authenticated(user Profile, token Credential) State {
	u := user.Clone()
	t := token
	return State{User: &u, Token: &t, IsAuthenticated: true}
}

// IsVerified reports user.is_verified; false without a user.
func IsVerified(s State) bool {
	return s.User != nil && s.User.IsVerified
}

// HasOrganisation reports whether the user belongs to an organisation.
func HasOrganisation(s State) bool {
	return s.User != nil && s.User.HasOrganisation()
}

// IsOwner reports user.is_owner. It implies nothing else on its own.
func IsOwner(s State) bool {
	return s.User != nil && s.User.IsOwner
}
