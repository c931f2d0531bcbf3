package oauth

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackServerReceivesCode(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := NewCallbackServer(0)
	redirectURI, err := srv.Start(ctx)
	require.NoError(t, err)
	defer srv.Stop()

	assert.Contains(t, redirectURI, "/callback")

	resp, err := http.Get(fmt.Sprintf("%s?code=abc123&state=xyz", redirectURI))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	result, err := srv.WaitForCallback(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", result.Code)
	assert.Equal(t, "xyz", result.State)
	assert.False(t, result.IsError())
}

func TestCallbackServerReportsProviderError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := NewCallbackServer(0)
	redirectURI, err := srv.Start(ctx)
	require.NoError(t, err)
	defer srv.Stop()

	resp, err := http.Get(fmt.Sprintf("%s?error=access_denied&error_description=user+cancelled", redirectURI))
	require.NoError(t, err)
	resp.Body.Close()

	result, err := srv.WaitForCallback(ctx)
	require.NoError(t, err)
	assert.True(t, result.IsError())
	assert.Equal(t, "access_denied", result.Error)
	assert.Equal(t, "user cancelled", result.ErrorDescription)
}

func TestCallbackServerSecondRequestRejected(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := NewCallbackServer(0)
	redirectURI, err := srv.Start(ctx)
	require.NoError(t, err)
	defer srv.Stop()

	resp, err := http.Get(fmt.Sprintf("%s?code=first&state=s", redirectURI))
	require.NoError(t, err)
	resp.Body.Close()

	resp2, err := http.Get(fmt.Sprintf("%s?code=second&state=s", redirectURI))
	if err == nil {
		defer resp2.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
	}

	result, err := srv.WaitForCallback(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", result.Code)
}

func TestCallbackServerCancellationTearsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	srv := NewCallbackServer(0)
	redirectURI, err := srv.Start(ctx)
	require.NoError(t, err)

	cancel()

	// The listener should stop accepting shortly after cancellation.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := http.Get(redirectURI); err != nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("callback server still accepting connections after context cancellation")
}

func TestCallbackServerWaitHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	srv := NewCallbackServer(0)
	_, err := srv.Start(ctx)
	require.NoError(t, err)
	defer srv.Stop()

	cancel()

	_, err = srv.WaitForCallback(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
