// Package platformtest runs an in-process fake of the tender backend for
// tests. It speaks the same wire format as the real API.
package platformtest

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/felixgeelhaar/tenderdesk/internal/platform"
	"github.com/felixgeelhaar/tenderdesk/internal/session"
)

var signingKey = []byte("platformtest-signing-key")

// UserSeed describes an account to create directly.
type UserSeed struct {
	Firstname string
	Lastname  string
	Email     string
	Password  string
	Verified  bool
	// Organisation creates a fresh organisation for the user.
	Organisation bool
	Owner        bool
}

type account struct {
	profile  session.Profile
	password string
}

// Server is the fake backend.
type Server struct {
	t   testing.TB
	srv *httptest.Server

	mu            sync.Mutex
	users         map[string]*account // by email
	access        map[string]string   // access token -> email
	refresh       map[string]string   // refresh token -> email
	verifications map[string]string   // verification token -> email
	orgs          map[string]*platform.Organisation
	joins         map[string]string // email -> organisation code

	calls        map[string]int
	unauthorized map[string]int

	failRefresh bool
	refreshGate <-chan struct{}
	failMe      int
	malformedMe bool
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		t:             t,
		users:         map[string]*account{},
		access:        map[string]string{},
		refresh:       map[string]string{},
		verifications: map[string]string{},
		orgs:          map[string]*platform.Organisation{},
		joins:         map[string]string{},
		calls:         map[string]int{},
		unauthorized:  map[string]int{},
	}
	s.srv = httptest.NewServer(s.router())
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the base URL to hand to platform.NewClient.
func (s *Server) URL() string { return s.srv.URL }

// Client returns a platform client pointed at the server.
func (s *Server) Client(opts ...platform.Option) *platform.Client {
	return platform.NewClient(s.URL(), opts...)
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.count)

	r.HandleFunc(platform.PathLogin, s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc(platform.PathRefresh, s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc(platform.PathMe, s.authenticated(s.handleMe)).Methods(http.MethodGet)
	r.HandleFunc(platform.PathRegister, s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc(platform.PathVerifyEmail, s.handleVerifyEmail).Methods(http.MethodPost)
	r.HandleFunc(platform.PathResendVerification, s.authenticated(s.handleResend)).Methods(http.MethodPost)
	r.HandleFunc(platform.PathLogout, s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc(platform.PathCreateOrganisation, s.authenticated(s.verified(s.handleCreateOrganisation))).Methods(http.MethodPost)
	r.HandleFunc(platform.PathJoinOrganisation, s.authenticated(s.verified(s.handleJoinOrganisation))).Methods(http.MethodPost)
	r.HandleFunc(platform.PathMembers, s.authenticated(s.verified(s.handleMembers))).Methods(http.MethodGet)
	r.HandleFunc(PathTenderFolders, s.authenticated(s.handleTenderFolders)).Methods(http.MethodGet)
	return r
}

// PathTenderFolders is a protected resource used to exercise the
// refresh pipeline with ordinary traffic.
const PathTenderFolders = "/tender-folders"

// ---- test controls ----

// AddUser creates an account and returns its profile.
func (s *Server) AddUser(seed UserSeed) session.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := session.Profile{
		ID:         uuid.NewString(),
		Firstname:  orDefault(seed.Firstname, "Test"),
		Lastname:   orDefault(seed.Lastname, "User"),
		Email:      seed.Email,
		IsVerified: seed.Verified,
	}
	if seed.Organisation || seed.Owner {
		org := s.newOrganisationLocked("Org of " + seed.Email)
		p.OrganisationID = &org.ID
		p.IsOwner = seed.Owner
	}
	s.users[seed.Email] = &account{profile: p, password: seed.Password}
	return p
}

// Issue mints a credential for an existing user without calling login.
func (s *Server) Issue(email string) session.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return session.NewBearer(s.issueAccessLocked(email), s.issueRefreshLocked(email))
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = map[string]string{}
}

// FailRefresh makes the refresh endpoint reject every request.
func (s *Server) FailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// HoldRefresh makes the refresh endpoint wait for gate to close.
func (s *Server) HoldRefresh(gate <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshGate = gate
}

// FailProfileFetches makes the next n profile fetches answer 500.
func (s *Server) FailProfileFetches(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failMe = n
}

// MalformedProfile makes profile fetches return an unparsable body.
func (s *Server) MalformedProfile(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.malformedMe = on
}

// SetProfile overwrites a user's profile server-side, as an admin would.
func (s *Server) SetProfile(email string, mutate func(*session.Profile)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.users[email]; ok {
		mutate(&a.profile)
	}
}

// VerificationToken returns the pending verification token for email.
func (s *Server) VerificationToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, e := range s.verifications {
		if e == email {
			return tok
		}
	}
	return ""
}

// AcceptJoin grants the pending join request of email.
func (s *Server) AcceptJoin(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.joins[email]
	a, exists := s.users[email]
	if !ok || !exists {
		return false
	}
	id := s.orgs[code].ID
	a.profile.OrganisationID = &id
	delete(s.joins, email)
	return true
}

// OrganisationCode returns the invitation code of the user's organisation.
func (s *Server) OrganisationCode(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.users[email]
	if !ok || a.profile.OrganisationID == nil {
		return ""
	}
	for code, org := range s.orgs {
		if org.ID == *a.profile.OrganisationID {
			return code
		}
	}
	return ""
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Unauthorized returns how many 401s were answered on path.
func (s *Server) Unauthorized(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unauthorized[path]
}

// ---- middleware ----

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type ctxHandler func(w http.ResponseWriter, r *http.Request, a *account)

func (s *Server) authenticated(h ctxHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheme, token, _ := strings.Cut(r.Header.Get(platform.HeaderAuthorization), " ")
		s.mu.Lock()
		email, ok := s.access[token]
		a := s.users[email]
		if !ok || a == nil || !strings.EqualFold(scheme, session.SchemeBearer) {
			s.unauthorized[r.URL.Path]++
			s.mu.Unlock()
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		s.mu.Unlock()
		h(w, r, a)
	}
}

func (s *Server) verified(h ctxHandler) ctxHandler {
	return func(w http.ResponseWriter, r *http.Request, a *account) {
		if !s.snapshot(a).IsVerified {
			writeDetail(w, http.StatusForbidden, "Email non verifié")
			return
		}
		h(w, r, a)
	}
}

// ---- handlers ----

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in platform.LoginRequest
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	a, ok := s.users[in.Email]
	if !ok || a.password != in.Password {
		s.mu.Unlock()
		writeDetail(w, http.StatusUnauthorized, "Email ou Mot de passe incorrect")
		return
	}
	access := s.issueAccessLocked(in.Email)
	refresh := s.issueRefreshLocked(in.Email)
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: platform.RefreshCookie, Value: refresh, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"access_token": access, "token_type": "bearer"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.refreshGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	cookie, err := r.Cookie(platform.RefreshCookie)
	if err != nil || cookie.Value == "" {
		s.reject(w, r, "refresh token manquant")
		return
	}

	s.mu.Lock()
	email, ok := s.refresh[cookie.Value]
	if !ok || s.failRefresh {
		s.mu.Unlock()
		s.reject(w, r, "refresh token invalide ou expiré")
		return
	}
	access := s.issueAccessLocked(email)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"access_token": access, "token_type": "bearer"})
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, detail string) {
	s.mu.Lock()
	s.unauthorized[r.URL.Path]++
	s.mu.Unlock()
	writeDetail(w, http.StatusUnauthorized, detail)
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, a *account) {
	s.mu.Lock()
	fail := s.failMe > 0
	if fail {
		s.failMe--
	}
	malformed := s.malformedMe
	s.mu.Unlock()

	switch {
	case fail:
		writeDetail(w, http.StatusInternalServerError, "Erreur interne")
	case malformed:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id": 42,`))
	default:
		writeJSON(w, http.StatusOK, s.snapshot(a))
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in platform.RegisterRequest
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.users[in.Email]; ok && a.profile.IsVerified {
		writeDetail(w, http.StatusBadRequest, "Un compte vérifié existe déjà avec cet email.")
		return
	}
	p := session.Profile{ID: uuid.NewString(), Firstname: in.Firstname, Lastname: in.Lastname, Email: in.Email}
	s.users[in.Email] = &account{profile: p, password: in.Password}
	s.verifications[uuid.NewString()] = in.Email
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.verifications[in.Token]
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Jeton invalide ou expiré")
		return
	}
	delete(s.verifications, in.Token)
	s.users[email].profile.IsVerified = true
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email verifié avec succès"})
}

func (s *Server) handleResend(w http.ResponseWriter, _ *http.Request, a *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.profile.IsVerified {
		writeDetail(w, http.StatusBadRequest, "Votre email est déjà vérifié, reconnectez vous")
		return
	}
	for tok, e := range s.verifications {
		if e == a.profile.Email {
			delete(s.verifications, tok)
		}
	}
	s.verifications[uuid.NewString()] = a.profile.Email
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Email de vérification renvoyé avec succès",
		"email":   a.profile.Email,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(platform.RefreshCookie); err == nil {
		s.mu.Lock()
		delete(s.refresh, cookie.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: platform.RefreshCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Déconnexion réussie"})
}

func (s *Server) handleCreateOrganisation(w http.ResponseWriter, r *http.Request, a *account) {
	var in struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.profile.OrganisationID != nil {
		writeDetail(w, http.StatusBadRequest, "Vous appartenez déjà à une organisation")
		return
	}
	if in.Name == "" || len(in.Name) > 50 {
		writeDetail(w, http.StatusUnprocessableEntity, "name: must be between 1 and 50 characters")
		return
	}
	org := s.newOrganisationLocked(in.Name)
	a.profile.OrganisationID = &org.ID
	a.profile.IsOwner = true
	writeJSON(w, http.StatusCreated, platform.CreateOrganisationResponse{Organisation: *org, User: a.profile.Clone()})
}

func (s *Server) handleJoinOrganisation(w http.ResponseWriter, r *http.Request, a *account) {
	var in struct {
		Code string `json:"code"`
	}
	if !decode(w, r, &in) {
		return
	}
	code := platform.NormaliseCode(in.Code)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[code]; !ok {
		writeDetail(w, http.StatusNotFound, "Code d'organisation invalide")
		return
	}
	if _, pending := s.joins[a.profile.Email]; pending {
		writeDetail(w, http.StatusBadRequest, "Une demande est déjà en attente")
		return
	}
	s.joins[a.profile.Email] = code
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Votre demande a bien été envoyée"})
}

func (s *Server) handleMembers(w http.ResponseWriter, _ *http.Request, a *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !a.profile.IsOwner || a.profile.OrganisationID == nil {
		writeDetail(w, http.StatusForbidden, "Accès refusé")
		return
	}
	members := []session.Profile{}
	for _, u := range s.users {
		if u.profile.OrganisationID != nil && *u.profile.OrganisationID == *a.profile.OrganisationID {
			members = append(members, u.profile.Clone())
		}
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleTenderFolders(w http.ResponseWriter, _ *http.Request, _ *account) {
	writeJSON(w, http.StatusOK, []map[string]string{})
}

// ---- helpers ----

func (s *Server) snapshot(a *account) session.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return a.profile.Clone()
}

func (s *Server) issueAccessLocked(email string) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   email,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
	})
	signed, err := tok.SignedString(signingKey)
	if err != nil {
		s.t.Fatalf("sign token: %v", err)
	}
	s.access[signed] = email
	return signed
}

func (s *Server) issueRefreshLocked(email string) string {
	tok := uuid.NewString()
	s.refresh[tok] = email
	return tok
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func (s *Server) newOrganisationLocked(name string) *platform.Organisation {
	var code string
	for {
		b := make([]byte, 6)
		for i := range b {
			b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		code = string(b)
		if _, taken := s.orgs[code]; !taken {
			break
		}
	}
	org := &platform.Organisation{ID: uuid.NewString(), Name: name, Code: code, CreatedAt: time.Now().UTC(), MemberCount: 1}
	s.orgs[code] = org
	return org
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
