package platform_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/platform"
	"github.com/felixgeelhaar/tenderdesk/internal/platform/platformtest"
)

func TestRequestClone(t *testing.T) {
	req, err := platform.NewRequest(http.MethodPost, "/x", map[string]string{"a": "b"})
	require.NoError(t, err)
	req.Header.Set(platform.HeaderAuthorization, "bearer old")

	clone := req.Clone()
	clone.Header.Set(platform.HeaderAuthorization, "bearer new")
	clone.Body[0] = 'X'
	clone.Retried = true

	assert.Equal(t, "bearer old", req.Header.Get(platform.HeaderAuthorization))
	assert.Equal(t, byte('{'), req.Body[0])
	assert.False(t, req.Retried)
	assert.Equal(t, "application/json", clone.Header.Get("Content-Type"))
}

func TestDefaultHeadersAndRequestID(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Clone())
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	client := platform.NewClient(srv.URL + "/")
	client.SetDefaultHeader(platform.HeaderAuthorization, "bearer one")
	assert.Equal(t, "bearer one", client.DefaultHeader(platform.HeaderAuthorization))

	ctx := context.Background()
	req, _ := platform.NewRequest(http.MethodGet, "/a", nil)
	_, err := client.Do(ctx, req)
	require.NoError(t, err)

	explicit, _ := platform.NewRequest(http.MethodGet, "/b", nil)
	explicit.Header.Set(platform.HeaderAuthorization, "bearer mine")
	_, err = client.Do(ctx, explicit)
	require.NoError(t, err)

	client.DeleteDefaultHeader(platform.HeaderAuthorization)
	client.DeleteDefaultHeader("X-Never-Set")
	req, _ = platform.NewRequest(http.MethodGet, "/c", nil)
	_, err = client.Do(ctx, req)
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Equal(t, "bearer one", seen[0].Get(platform.HeaderAuthorization))
	assert.Equal(t, "bearer mine", seen[1].Get(platform.HeaderAuthorization))
	assert.Empty(t, seen[2].Get(platform.HeaderAuthorization))

	ids := map[string]bool{}
	for _, h := range seen {
		id := h.Get(platform.HeaderRequestID)
		assert.Len(t, id, 36)
		ids[id] = true
	}
	assert.Len(t, ids, 3, "every exchange gets its own request id")
}

func TestMiddlewareOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	var order []string
	tag := func(name string) platform.Middleware {
		return func(next platform.Handler) platform.Handler {
			return func(ctx context.Context, req *platform.Request) (*platform.Response, error) {
				order = append(order, name+">")
				resp, err := next(ctx, req)
				order = append(order, "<"+name)
				return resp, err
			}
		}
	}

	client := platform.NewClient(srv.URL)
	client.Use(tag("outer"), tag("inner"))

	req, _ := platform.NewRequest(http.MethodGet, "/", nil)
	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, []string{"outer>", "inner>", "<inner", "<outer"}, order)
}

func TestNetworkErrorIsCoded(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := platform.NewClient(url).CurrentUser(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeAPINetwork))
}

func TestAPIErrorDetail(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{"string detail", 400, `{"detail":"Jeton invalide ou expiré"}`, "Jeton invalide ou expiré"},
		{"validation list", 422, `{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address"}]}`, "email: value is not a valid email address"},
		{"plain text", 502, `Bad Gateway`, "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := platform.Decode(&platform.Response{StatusCode: tt.status, Body: []byte(tt.body)}, "/x", nil)
			apiErr, ok := platform.AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantDetail, apiErr.Detail)
			assert.Contains(t, apiErr.Error(), tt.wantDetail)
		})
	}

	assert.True(t, platform.IsUnauthorized(platform.Decode(&platform.Response{StatusCode: 401}, "/x", nil)))
}

func TestAPIErrorLongBodyKeepsValidUTF8(t *testing.T) {
	body := strings.Repeat("a", 199) + strings.Repeat("é", 20)
	err := platform.Decode(&platform.Response{StatusCode: 500, Body: []byte(body)}, "/x", nil)
	apiErr, ok := platform.AsAPIError(err)
	require.True(t, ok)

	assert.True(t, utf8.ValidString(apiErr.Detail))
	assert.Equal(t, strings.Repeat("a", 199), apiErr.Detail)
	assert.LessOrEqual(t, len(apiErr.Detail), 200)
}

func TestDecodeMalformed(t *testing.T) {
	var v map[string]any
	err := platform.Decode(&platform.Response{StatusCode: 200, Body: []byte(`{"a":`)}, "/auth/me", &v)
	assert.True(t, errors.Is(err, errors.ErrCodeAPIMalformed))

	err = platform.Decode(&platform.Response{StatusCode: 200}, "/auth/me", &v)
	assert.True(t, errors.Is(err, errors.ErrCodeAPIMalformed))

	assert.NoError(t, platform.Decode(&platform.Response{StatusCode: 204}, "/auth/logout", nil))
}

func TestAuthEndpoints(t *testing.T) {
	ctx := context.Background()
	backend := platformtest.New(t)
	client := backend.Client()

	profile, err := client.Register(ctx, platform.RegisterRequest{
		Firstname: "Ada", Lastname: "Lovelace", Email: "ada@example.com", Password: "password1",
	})
	require.NoError(t, err)
	assert.False(t, profile.IsVerified)

	tok, err := client.Login(ctx, "ada@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.NotEmpty(t, tok.RefreshToken, "refresh cookie captured")
	cred := tok.Credential()
	_, hasExp := cred.Expiry()
	assert.True(t, hasExp)

	client.SetDefaultHeader(platform.HeaderAuthorization, cred.Header())
	me, err := client.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, me.ID)

	msg, err := client.ResendVerification(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", msg.Email)

	_, err = client.VerifyEmail(ctx, "garbage")
	apiErr, ok := platform.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	_, err = client.VerifyEmail(ctx, backend.VerificationToken("ada@example.com"))
	require.NoError(t, err)

	_, err = client.ResendVerification(ctx)
	apiErr, ok = platform.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	refreshed, err := client.Refresh(ctx, cred.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, cred.Token, refreshed.AccessToken)
	assert.Equal(t, cred.Refresh, refreshed.RefreshToken)

	require.NoError(t, client.Logout(ctx, cred.Refresh))
	_, err = client.Refresh(ctx, cred.Refresh)
	assert.True(t, platform.IsUnauthorized(err))
}

func TestLoginRejected(t *testing.T) {
	backend := platformtest.New(t)
	backend.AddUser(platformtest.UserSeed{Email: "a@b.co", Password: "right-pass"})

	_, err := backend.Client().Login(context.Background(), "a@b.co", "wrong-pass")
	apiErr, ok := platform.AsAPIError(err)
	require.True(t, ok)
	assert.True(t, apiErr.Unauthorized())
	assert.Equal(t, "Email ou Mot de passe incorrect", apiErr.Detail)
}

func TestOrganisationEndpoints(t *testing.T) {
	ctx := context.Background()
	backend := platformtest.New(t)
	backend.AddUser(platformtest.UserSeed{Email: "owner@b.co", Password: "pw", Verified: true})
	backend.AddUser(platformtest.UserSeed{Email: "member@b.co", Password: "pw", Verified: true})

	owner := backend.Client()
	owner.SetDefaultHeader(platform.HeaderAuthorization, backend.Issue("owner@b.co").Header())

	created, err := owner.CreateOrganisation(ctx, "  Acme Tenders ")
	require.NoError(t, err)
	assert.Equal(t, "Acme Tenders", created.Organisation.Name)
	assert.True(t, created.User.IsOwner)
	require.NoError(t, created.User.Validate())

	_, err = owner.CreateOrganisation(ctx, "Again")
	apiErr, ok := platform.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	member := backend.Client()
	member.SetDefaultHeader(platform.HeaderAuthorization, backend.Issue("member@b.co").Header())

	_, err = member.JoinOrganisation(ctx, "nope00")
	apiErr, ok = platform.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	msg, err := member.JoinOrganisation(ctx, " "+created.Organisation.Code+" ")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.Message)
	require.True(t, backend.AcceptJoin("member@b.co"))

	members, err := owner.ListMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = member.ListMembers(ctx)
	apiErr, ok = platform.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestNormaliseCode(t *testing.T) {
	assert.Equal(t, "ABC123", platform.NormaliseCode("  abc123 "))
}

func TestWithoutRefresh(t *testing.T) {
	ctx := context.Background()
	assert.False(t, platform.RefreshDisabled(ctx))
	assert.True(t, platform.RefreshDisabled(platform.WithoutRefresh(ctx)))
}
