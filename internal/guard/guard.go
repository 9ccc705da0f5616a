// Package guard decides whether a screen may render for the current
// session, or where the user should be sent instead.
//
// Rules are checked in a fixed order and the first match wins:
//
//  1. session still loading: show a loading state
//  2. authentication required but nobody signed in: login
//  3. verification required but email unverified: verification prompt
//  4. verified user on the verification prompt: dashboard
//  5. user with an organisation on an onboarding screen: dashboard
//  6. organisation required but none yet: organisation choice
//  7. ownership required but not an owner: dashboard
//
// Guest screens (home, login, signup) add one rule after loading: a
// signed-in user is sent to the dashboard, or to the verification prompt
// while unverified. Anything the guard cannot classify goes to login.
package guard

import (
	"github.com/felixgeelhaar/tenderdesk/internal/session"
)

// Outcome is what the caller should do with the requested screen.
type Outcome string

const (
	OutcomeRender   Outcome = "render"
	OutcomeRedirect Outcome = "redirect"
	OutcomeLoading  Outcome = "loading"
)

// Decision is the result of Evaluate. Target is set for redirects.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Target  Screen  `json:"target,omitempty"`
	Reason  string  `json:"reason"`
}

// Rendered reports whether the requested screen may be shown.
func (d Decision) Rendered() bool {
	return d.Outcome == OutcomeRender
}

func (d Decision) String() string {
	if d.Outcome == OutcomeRedirect {
		return string(d.Outcome) + " to " + string(d.Target) + " (" + d.Reason + ")"
	}
	return string(d.Outcome)
}

// Input is everything Evaluate looks at.
type Input struct {
	State       session.State
	Requirement Requirement
	// PendingVerification is an out-of-band marker set after a signup
	// in this client and cleared on login or verification.
	PendingVerification bool
}

func render() Decision {
	return Decision{Outcome: OutcomeRender, Reason: "allowed"}
}

func redirect(to Screen, reason string) Decision {
	return Decision{Outcome: OutcomeRedirect, Target: to, Reason: reason}
}

// Evaluate applies the rules to in. It has no side effects.
func Evaluate(in Input) Decision {
	st, req := in.State, in.Requirement

	if st.IsLoading {
		return Decision{Outcome: OutcomeLoading, Reason: "session loading"}
	}
	if !req.Consistent() {
		return redirect(ScreenLogin, "inconsistent requirement")
	}

	if req.Guest {
		switch {
		case !st.IsAuthenticated:
			return render()
		case session.IsVerified(st):
			return redirect(ScreenDashboard, "already signed in")
		default:
			return redirect(ScreenVerifyPrompt, "email not verified")
		}
	}

	if req.Authenticated && !st.IsAuthenticated {
		if req.AllowPendingVerification && in.PendingVerification {
			return render()
		}
		return redirect(ScreenLogin, "not signed in")
	}
	if req.Verified && !session.IsVerified(st) {
		return redirect(ScreenVerifyPrompt, "email not verified")
	}
	if req.ForbidVerified && session.IsVerified(st) {
		return redirect(ScreenDashboard, "email already verified")
	}
	if req.ForbidOrganisation && session.HasOrganisation(st) {
		return redirect(ScreenDashboard, "already in an organisation")
	}
	if req.Organisation && !session.HasOrganisation(st) {
		return redirect(ScreenOrganisationChoice, "no organisation")
	}
	if req.Owner && !session.IsOwner(st) {
		return redirect(ScreenDashboard, "not an organisation owner")
	}
	return render()
}

// Decide resolves the requirement of screen from routes and evaluates it.
// Undeclared screens redirect to login once the session has loaded.
func Decide(routes *Routes, st session.State, screen Screen, pendingVerification bool) Decision {
	if st.IsLoading {
		return Decision{Outcome: OutcomeLoading, Reason: "session loading"}
	}
	req, ok := routes.RequirementFor(screen)
	if !ok {
		return redirect(ScreenLogin, "unknown screen")
	}
	return Evaluate(Input{State: st, Requirement: req, PendingVerification: pendingVerification})
}

// Resolve follows redirects from screen until a screen renders or the
// session is loading. It returns the final decision and the screen it
// applies to. A redirect cycle resolves to login.
func Resolve(routes *Routes, st session.State, screen Screen, pendingVerification bool) (Screen, Decision) {
	seen := map[Screen]bool{}
	for {
		d := Decide(routes, st, screen, pendingVerification)
		if d.Outcome != OutcomeRedirect {
			return screen, d
		}
		if seen[d.Target] {
			return ScreenLogin, redirect(ScreenLogin, "redirect cycle")
		}
		seen[screen] = true
		screen = d.Target
	}
}
