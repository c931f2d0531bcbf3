package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	return NewStorageWithRoot(t.TempDir())
}

func testSource(workspaceID, slug string) *Source {
	return &Source{
		Slug:        slug,
		WorkspaceID: workspaceID,
		Type:        TypeMCP,
		Enabled:     true,
		MCP: &MCPConfig{
			URL:       "https://mcp.example.com",
			Transport: TransportHTTP,
			AuthType:  AuthOAuth,
		},
	}
}

func TestStorageSaveLoadRoundtrip(t *testing.T) {
	st := newTestStorage(t)

	src := testSource("ws1", "github")
	require.NoError(t, st.Save(src))

	loaded, err := st.Load("ws1", "github")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, src.Slug, loaded.Slug)
	assert.Equal(t, src.WorkspaceID, loaded.WorkspaceID)
	assert.Equal(t, TypeMCP, loaded.Type)
	require.NotNil(t, loaded.MCP)
	assert.Equal(t, AuthOAuth, loaded.MCP.AuthType)
}

func TestStorageLoadMissingReturnsNil(t *testing.T) {
	st := newTestStorage(t)

	loaded, err := st.Load("ws1", "nope")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStorageList(t *testing.T) {
	st := newTestStorage(t)

	require.NoError(t, st.Save(testSource("ws1", "alpha")))
	require.NoError(t, st.Save(testSource("ws1", "beta")))
	require.NoError(t, st.Save(testSource("ws2", "gamma")))

	sources, err := st.List("ws1")
	require.NoError(t, err)
	assert.Len(t, sources, 2)

	empty, err := st.List("ws-missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStorageDelete(t *testing.T) {
	st := newTestStorage(t)

	require.NoError(t, st.Save(testSource("ws1", "github")))

	existed, err := st.Delete("ws1", "github")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = st.Delete("ws1", "github")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestMarkNeedsReauthIsIdempotent(t *testing.T) {
	st := newTestStorage(t)

	src := testSource("ws1", "github")
	src.IsAuthenticated = true
	src.ConnectionStatus = StatusConnected
	require.NoError(t, st.Save(src))

	require.NoError(t, st.MarkNeedsReauth("ws1", "github", "refresh failed"))

	first, err := st.Load("ws1", "github")
	require.NoError(t, err)
	assert.False(t, first.IsAuthenticated)
	assert.Equal(t, StatusNeedsAuth, first.ConnectionStatus)
	assert.Equal(t, "refresh failed", first.ConnectionError)

	// Second call must leave the source in the identical terminal state.
	require.NoError(t, st.MarkNeedsReauth("ws1", "github", "refresh failed"))

	second, err := st.Load("ws1", "github")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMarkAuthenticatedClearsError(t *testing.T) {
	st := newTestStorage(t)

	src := testSource("ws1", "github")
	src.ConnectionStatus = StatusNeedsAuth
	src.ConnectionError = "token expired"
	require.NoError(t, st.Save(src))

	require.NoError(t, st.MarkAuthenticated("ws1", "github"))

	loaded, err := st.Load("ws1", "github")
	require.NoError(t, err)
	assert.True(t, loaded.IsAuthenticated)
	assert.Equal(t, StatusConnected, loaded.ConnectionStatus)
	assert.Empty(t, loaded.ConnectionError)
}

func TestMarkOnMissingSourceFails(t *testing.T) {
	st := newTestStorage(t)

	assert.Error(t, st.MarkAuthenticated("ws1", "ghost"))
	assert.Error(t, st.MarkNeedsReauth("ws1", "ghost", "why"))
}
