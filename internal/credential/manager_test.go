package credential

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhq/relay/internal/oauth"
	"github.com/relayhq/relay/internal/source"
)

// fakeAdapter is a scriptable oauth.Adapter for lifecycle tests.
type fakeAdapter struct {
	mu sync.Mutex

	authorizeGrant *oauth.Grant
	authorizeErr   error
	refreshGrant   *oauth.Grant
	refreshErr     error

	// refreshDelay makes concurrent callers overlap deterministically.
	refreshDelay time.Duration

	authorizeCalls int32
	refreshCalls   int32
	lastRefresh    oauth.RefreshRequest
}

func (f *fakeAdapter) Authorize(ctx context.Context, req oauth.AuthorizeRequest) (*oauth.Grant, error) {
	atomic.AddInt32(&f.authorizeCalls, 1)
	if f.authorizeErr != nil {
		return nil, f.authorizeErr
	}
	return f.authorizeGrant, nil
}

func (f *fakeAdapter) Refresh(ctx context.Context, req oauth.RefreshRequest) (*oauth.Grant, error) {
	atomic.AddInt32(&f.refreshCalls, 1)
	f.mu.Lock()
	f.lastRefresh = req
	f.mu.Unlock()
	if f.refreshDelay > 0 {
		select {
		case <-time.After(f.refreshDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshGrant, nil
}

func mcpOAuthSource(slug string) *source.Source {
	return &source.Source{
		Slug: slug, WorkspaceID: "ws1", Type: source.TypeMCP, Enabled: true,
		MCP: &source.MCPConfig{
			URL:       "https://mcp." + slug + ".example.com",
			Transport: source.TransportHTTP,
			AuthType:  source.AuthOAuth,
		},
	}
}

func newTestManager(t *testing.T, adapters Adapters) (*Manager, *source.Storage) {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	sources := source.NewStorageWithRoot(t.TempDir())
	return NewManager(store, sources, adapters), sources
}

func TestManagerGetToken(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, Adapters{})
	src := mcpOAuthSource("linear")

	t.Run("absent credential yields empty without error", func(t *testing.T) {
		token, err := m.GetToken(ctx, src)
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("valid credential yields its token", func(t *testing.T) {
		require.NoError(t, m.Save(ctx, src, &StoredCredential{
			Value:     "tok-1",
			ExpiresAt: time.Now().Add(time.Hour).UnixMilli(),
		}))
		token, err := m.GetToken(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
		assert.True(t, m.HasValidCredentials(ctx, src))
	})

	t.Run("expired credential yields empty and never refreshes", func(t *testing.T) {
		require.NoError(t, m.Save(ctx, src, &StoredCredential{
			Value:        "tok-1",
			RefreshToken: "rt-1",
			ExpiresAt:    time.Now().Add(-time.Minute).UnixMilli(),
		}))
		token, err := m.GetToken(ctx, src)
		require.NoError(t, err)
		assert.Empty(t, token)
		assert.False(t, m.HasValidCredentials(ctx, src))
	})
}

func TestManagerLoadFallsBackToBearerIdentityForMCP(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, Adapters{})
	src := mcpOAuthSource("linear")

	// A credential saved while the source declared bearer auth lives under
	// the bearer identity.
	bearerID := ID{Kind: KindBearer, WorkspaceID: src.WorkspaceID, SourceID: src.Slug}
	require.NoError(t, m.store.Set(ctx, bearerID, &StoredCredential{Value: "legacy-tok"}))

	cred, err := m.Load(ctx, src)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "legacy-tok", cred.Value)

	// Once an OAuth credential exists it wins over the legacy one.
	require.NoError(t, m.Save(ctx, src, &StoredCredential{Value: "oauth-tok"}))
	cred, err = m.Load(ctx, src)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "oauth-tok", cred.Value)
}

func TestManagerDeleteRemovesBothMCPIdentities(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, Adapters{})
	src := mcpOAuthSource("linear")

	bearerID := ID{Kind: KindBearer, WorkspaceID: src.WorkspaceID, SourceID: src.Slug}
	require.NoError(t, m.store.Set(ctx, bearerID, &StoredCredential{Value: "legacy-tok"}))
	require.NoError(t, m.Save(ctx, src, &StoredCredential{Value: "oauth-tok"}))

	deleted, err := m.Delete(ctx, src)
	require.NoError(t, err)
	assert.True(t, deleted)

	cred, err := m.Load(ctx, src)
	require.NoError(t, err)
	assert.Nil(t, cred)

	deleted, err = m.Delete(ctx, src)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestManagerRefreshLifecycle(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		refreshGrant: &oauth.Grant{
			AccessToken: "new",
			TokenType:   "Bearer",
			ExpiresAt:   time.Now().Add(time.Hour),
		},
	}
	m, sources := newTestManager(t, Adapters{MCP: adapter})
	src := mcpOAuthSource("linear")
	require.NoError(t, sources.Save(src))

	require.NoError(t, m.Save(ctx, src, &StoredCredential{
		Value:        "old",
		RefreshToken: "rt1",
		ExpiresAt:    time.Now().Add(-time.Minute).UnixMilli(),
	}))

	// The expired token is not served.
	token, err := m.GetToken(ctx, src)
	require.NoError(t, err)
	assert.Empty(t, token)

	// Refresh obtains and persists a new one.
	assert.Equal(t, "new", m.Refresh(ctx, src))
	assert.Equal(t, int32(1), atomic.LoadInt32(&adapter.refreshCalls))
	assert.Equal(t, "rt1", adapter.lastRefresh.RefreshToken)

	token, err = m.GetToken(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "new", token)

	// The provider did not rotate the refresh token, so the stored one is
	// kept for the next refresh.
	cred, err := m.Load(ctx, src)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "rt1", cred.RefreshToken)
}

func TestManagerRefreshRotatesRefreshToken(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		refreshGrant: &oauth.Grant{
			AccessToken:  "new",
			RefreshToken: "rt2",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
	}
	m, sources := newTestManager(t, Adapters{Microsoft: adapter})
	src := &source.Source{
		Slug: "graph", WorkspaceID: "ws1", Type: source.TypeAPI, Provider: "microsoft", Enabled: true,
		API: &source.APIConfig{BaseURL: "https://graph.microsoft.com", AuthType: source.AuthOAuth},
	}
	require.NoError(t, sources.Save(src))
	require.NoError(t, m.Save(ctx, src, &StoredCredential{Value: "old", RefreshToken: "rt1"}))

	assert.Equal(t, "new", m.Refresh(ctx, src))

	cred, err := m.Load(ctx, src)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "rt2", cred.RefreshToken, "rotated refresh token must replace the stored one")
}

func TestManagerRefreshWithoutRefreshToken(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{refreshErr: errors.New("must not be called")}
	m, sources := newTestManager(t, Adapters{MCP: adapter})
	src := mcpOAuthSource("linear")
	require.NoError(t, sources.Save(src))

	t.Run("no credential at all", func(t *testing.T) {
		assert.Empty(t, m.Refresh(ctx, src))
	})

	t.Run("credential without refresh token", func(t *testing.T) {
		require.NoError(t, m.Save(ctx, src, &StoredCredential{Value: "tok"}))
		assert.Empty(t, m.Refresh(ctx, src))
	})

	assert.Equal(t, int32(0), atomic.LoadInt32(&adapter.refreshCalls), "refresh must short-circuit before any provider call")

	// Absence of a refresh token is not a provider failure; the source is
	// left untouched.
	persisted, err := sources.Load(src.WorkspaceID, src.Slug)
	require.NoError(t, err)
	assert.NotEqual(t, source.StatusNeedsAuth, persisted.ConnectionStatus)
}

func TestManagerRefreshFailureMarksNeedsReauth(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{refreshErr: errors.New("invalid_grant: refresh token revoked")}
	m, sources := newTestManager(t, Adapters{MCP: adapter})
	src := mcpOAuthSource("linear")
	src.IsAuthenticated = true
	src.ConnectionStatus = source.StatusConnected
	require.NoError(t, sources.Save(src))
	require.NoError(t, m.Save(ctx, src, &StoredCredential{Value: "old", RefreshToken: "rt1"}))

	assert.Empty(t, m.Refresh(ctx, src))

	persisted, err := sources.Load(src.WorkspaceID, src.Slug)
	require.NoError(t, err)
	assert.False(t, persisted.IsAuthenticated)
	assert.Equal(t, source.StatusNeedsAuth, persisted.ConnectionStatus)
	assert.Contains(t, persisted.ConnectionError, "invalid_grant")

	// Marking again is idempotent.
	assert.Empty(t, m.Refresh(ctx, src))
	again, err := sources.Load(src.WorkspaceID, src.Slug)
	require.NoError(t, err)
	assert.Equal(t, persisted.ConnectionStatus, again.ConnectionStatus)
}

func TestManagerRefreshSingleFlight(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		refreshDelay: 100 * time.Millisecond,
		refreshGrant: &oauth.Grant{AccessToken: "new", ExpiresAt: time.Now().Add(time.Hour)},
	}
	m, sources := newTestManager(t, Adapters{MCP: adapter})
	src := mcpOAuthSource("linear")
	require.NoError(t, sources.Save(src))
	require.NoError(t, m.Save(ctx, src, &StoredCredential{Value: "old", RefreshToken: "rt1"}))

	const callers = 10
	tokens := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i] = m.Refresh(ctx, src)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&adapter.refreshCalls), "concurrent refreshes must share one provider call")
	for _, tok := range tokens {
		assert.Equal(t, "new", tok)
	}

	// The shared call has settled, so a later refresh makes a fresh one.
	assert.Equal(t, "new", m.Refresh(ctx, src))
	assert.Equal(t, int32(2), atomic.LoadInt32(&adapter.refreshCalls))
}

func TestManagerAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("success stores credential and flips source state", func(t *testing.T) {
		adapter := &fakeAdapter{
			authorizeGrant: &oauth.Grant{
				AccessToken:  "tok-1",
				RefreshToken: "rt-1",
				TokenType:    "Bearer",
				ExpiresAt:    time.Now().Add(time.Hour),
				ClientID:     "dyn-client",
				IdentityHint: "dev@example.com",
			},
		}
		m, sources := newTestManager(t, Adapters{MCP: adapter})
		src := mcpOAuthSource("linear")
		require.NoError(t, sources.Save(src))

		result := m.Authenticate(ctx, src, oauth.Callbacks{})
		assert.True(t, result.Success)
		assert.Empty(t, result.Error)
		assert.Equal(t, "dev@example.com", result.IdentityHint)

		cred, err := m.Load(ctx, src)
		require.NoError(t, err)
		require.NotNil(t, cred)
		assert.Equal(t, "tok-1", cred.Value)
		assert.Equal(t, "rt-1", cred.RefreshToken)
		assert.Equal(t, "dyn-client", cred.ClientID)

		persisted, err := sources.Load(src.WorkspaceID, src.Slug)
		require.NoError(t, err)
		assert.True(t, persisted.IsAuthenticated)
		assert.Equal(t, source.StatusConnected, persisted.ConnectionStatus)
	})

	t.Run("adapter failure becomes a result, not an error", func(t *testing.T) {
		adapter := &fakeAdapter{authorizeErr: errors.New("access_denied")}
		m, sources := newTestManager(t, Adapters{MCP: adapter})
		src := mcpOAuthSource("linear")
		require.NoError(t, sources.Save(src))

		result := m.Authenticate(ctx, src, oauth.Callbacks{})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "access_denied")

		cred, err := m.Load(ctx, src)
		require.NoError(t, err)
		assert.Nil(t, cred, "no credential may be stored on failure")
	})

	t.Run("non-oauth source is a descriptive failure", func(t *testing.T) {
		m, sources := newTestManager(t, Adapters{})
		src := &source.Source{
			Slug: "github", WorkspaceID: "ws1", Type: source.TypeAPI, Provider: "github", Enabled: true,
			API: &source.APIConfig{BaseURL: "https://api.github.com", AuthType: source.AuthBearer},
		}
		require.NoError(t, sources.Save(src))

		result := m.Authenticate(ctx, src, oauth.Callbacks{})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "does not use OAuth")
	})

	t.Run("missing adapter is a failure result", func(t *testing.T) {
		m, sources := newTestManager(t, Adapters{})
		src := mcpOAuthSource("linear")
		require.NoError(t, sources.Save(src))

		result := m.Authenticate(ctx, src, oauth.Callbacks{})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "no mcp adapter configured")
	})
}

func TestManagerGetAPICredential(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, Adapters{})

	src := &source.Source{
		Slug: "jira", WorkspaceID: "ws1", Type: source.TypeAPI, Provider: "atlassian", Enabled: true,
		API: &source.APIConfig{BaseURL: "https://example.atlassian.net", AuthType: source.AuthBasic},
	}

	got, err := m.GetAPICredential(ctx, src)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, m.Save(ctx, src, &StoredCredential{
		Value: `{"username": "dev@example.com", "password": "api-token"}`,
	}))

	got, err = m.GetAPICredential(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, BasicCredential{Username: "dev@example.com", Password: "api-token"}, got)
}

func TestManagerSourcesNeedingAuth(t *testing.T) {
	m, _ := newTestManager(t, Adapters{})

	needing := mcpOAuthSource("linear")
	authenticated := mcpOAuthSource("notion")
	authenticated.IsAuthenticated = true
	disabled := mcpOAuthSource("asana")
	disabled.Enabled = false
	local := &source.Source{Slug: "fs", WorkspaceID: "ws1", Type: source.TypeLocal, Enabled: true}

	got := m.SourcesNeedingAuth([]*source.Source{needing, authenticated, disabled, local})
	require.Len(t, got, 1)
	assert.Equal(t, "linear", got[0].Slug)
}
