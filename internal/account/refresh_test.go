package account

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tenderdesk/internal/platform"
	"github.com/felixgeelhaar/tenderdesk/internal/platform/platformtest"
)

func TestRefreshRenewsAndReplays(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, platformtest.UserSeed{Email: "a@example.com", Verified: true, Organisation: true})
	before := *f.state.Snapshot().Token
	f.backend.ExpireAccessTokens()

	resp := f.getFolders(context.Background(), t)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, f.backend.Calls(platform.PathRefresh))
	assert.Equal(t, 1, f.backend.Unauthorized(platformtest.PathTenderFolders))

	after := f.state.Snapshot()
	require.True(t, after.IsAuthenticated)
	assert.NotEqual(t, before.Token, after.Token.Token)
	assert.Equal(t, before.Refresh, after.Token.Refresh, "refresh artifact kept")
	assert.Equal(t, after.Token.Header(), f.svc.Client().DefaultHeader(platform.HeaderAuthorization))

	stored, err := f.store.LoadCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, *after.Token, *stored)
}

func TestRefreshLateFailureReplaysWithoutSecondExchange(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, platformtest.UserSeed{Email: "a@example.com", Verified: true})
	stale := f.state.Snapshot().Token.Header()
	f.backend.ExpireAccessTokens()

	// R1 triggers the refresh.
	resp := f.getFolders(context.Background(), t)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// R2 was sent with the old credential and fails after the refresh.
	req, err := platform.NewRequest(http.MethodGet, platformtest.PathTenderFolders, nil)
	require.NoError(t, err)
	req.Header.Set(platform.HeaderAuthorization, stale)
	resp, err = f.svc.Client().Do(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, f.backend.Calls(platform.PathRefresh))
	assert.Equal(t, 2, f.backend.Unauthorized(platformtest.PathTenderFolders))
}

func TestRefreshSingleFlight(t *testing.T) {
	const workers = 5

	f := newFixture(t)
	f.signIn(t, platformtest.UserSeed{Email: "a@example.com", Verified: true})
	f.backend.ExpireAccessTokens()

	gate := make(chan struct{})
	f.backend.HoldRefresh(gate)

	var wg sync.WaitGroup
	statuses := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := platform.NewRequest(http.MethodGet, platformtest.PathTenderFolders, nil)
			if !assert.NoError(t, err) {
				return
			}
			resp, err := f.svc.Client().Do(context.Background(), req)
			if assert.NoError(t, err) {
				statuses[i] = resp.StatusCode
			}
		}(i)
	}

	require.Eventually(t, func() bool {
		return f.backend.Unauthorized(platformtest.PathTenderFolders) == workers
	}, 5*time.Second, 5*time.Millisecond)
	close(gate)
	wg.Wait()

	for i, status := range statuses {
		assert.Equal(t, http.StatusOK, status, "request %d", i)
	}
	assert.Equal(t, 1, f.backend.Calls(platform.PathRefresh))
	assert.True(t, f.state.Snapshot().IsAuthenticated)
}

func TestRefreshFailureLogsOutOnce(t *testing.T) {
	const workers = 3

	f := newFixture(t)
	f.signIn(t, platformtest.UserSeed{Email: "a@example.com", Verified: true})
	f.backend.ExpireAccessTokens()
	f.backend.FailRefresh(true)

	gate := make(chan struct{})
	f.backend.HoldRefresh(gate)

	var wg sync.WaitGroup
	statuses := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := platform.NewRequest(http.MethodGet, platformtest.PathTenderFolders, nil)
			if !assert.NoError(t, err) {
				return
			}
			resp, err := f.svc.Client().Do(context.Background(), req)
			if assert.NoError(t, err) {
				statuses[i] = resp.StatusCode
			}
		}(i)
	}

	require.Eventually(t, func() bool {
		return f.backend.Unauthorized(platformtest.PathTenderFolders) == workers
	}, 5*time.Second, 5*time.Millisecond)
	close(gate)
	wg.Wait()

	for i, status := range statuses {
		assert.Equal(t, http.StatusUnauthorized, status, "request %d", i)
	}
	assert.Equal(t, 1, f.backend.Calls(platform.PathRefresh))
	assert.Equal(t, 1, f.backend.Calls(platform.PathLogout))
	assertAnonymous(t, f)
}

func TestRefreshSkipped(t *testing.T) {
	tests := []struct {
		name    string
		signIn  bool
		ctx     func() context.Context
		retried bool
	}{
		{name: "anonymous session", ctx: context.Background},
		{name: "refresh disabled", signIn: true, ctx: func() context.Context { return platform.WithoutRefresh(context.Background()) }},
		{name: "already replayed", signIn: true, ctx: context.Background, retried: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.signIn {
				f.signIn(t, platformtest.UserSeed{Email: "a@example.com", Verified: true})
				f.backend.ExpireAccessTokens()
			}

			req, err := platform.NewRequest(http.MethodGet, platformtest.PathTenderFolders, nil)
			require.NoError(t, err)
			req.Retried = tt.retried
			resp, err := f.svc.Client().Do(tt.ctx(), req)
			require.NoError(t, err)

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Zero(t, f.backend.Calls(platform.PathRefresh))
			assert.Zero(t, f.backend.Calls(platform.PathLogout))
			assert.Equal(t, tt.signIn, f.state.Snapshot().IsAuthenticated)
		})
	}
}

func TestRefreshErrorSurfacesAsUnauthorized(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, platformtest.UserSeed{Email: "a@example.com", Verified: true})
	f.backend.ExpireAccessTokens()
	f.backend.FailRefresh(true)

	_, err := f.svc.RefreshUser(context.Background())
	require.Error(t, err)
	assert.True(t, platform.IsUnauthorized(err))
	assert.False(t, f.state.Snapshot().IsAuthenticated)
}
