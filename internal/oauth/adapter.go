package oauth

import (
	"context"
	"time"
)

// Callbacks are the user-facing hooks an interactive authorization flow
// needs. The zero value is usable: OpenURL defaults to launching the system
// browser.
type Callbacks struct {
	// OpenURL presents the authorization URL to the user. When nil,
	// OpenBrowser is used.
	OpenURL func(url string) error
}

func (c Callbacks) openURL(url string) error {
	if c.OpenURL != nil {
		return c.OpenURL(url)
	}
	return OpenBrowser(url)
}

// AuthorizeRequest carries everything an adapter needs to run an interactive
// authorization flow for a source.
type AuthorizeRequest struct {
	// Endpoint is the source's network endpoint: the MCP server URL or the
	// API base URL. The MCP adapter discovers its authorization server from
	// it; the fixed-endpoint adapters may use it for scope inference only.
	Endpoint string

	// Scopes are the OAuth scopes to request, already resolved by
	// ResolveScopes.
	Scopes []string

	// ClientID and ClientSecret override the adapter's configured client
	// when set. The MCP adapter registers a client dynamically when both
	// this and its configuration are empty.
	ClientID     string
	ClientSecret string

	// Callbacks are the user-facing hooks for the browser round trip.
	Callbacks Callbacks
}

// RefreshRequest carries everything an adapter needs to silently refresh an
// access token. No user interaction is ever involved.
type RefreshRequest struct {
	// Endpoint is the source's network endpoint; the MCP adapter rediscovers
	// its token endpoint from it.
	Endpoint string

	// RefreshToken is the stored refresh token. Never empty; the credential
	// manager short-circuits before dispatching when it is absent.
	RefreshToken string

	// ClientID and ClientSecret are the client credentials persisted from
	// the original authorization, falling back to the adapter's configured
	// client when empty.
	ClientID     string
	ClientSecret string
}

// Grant is the normalized result of an authorize or refresh handshake.
type Grant struct {
	// AccessToken is the bearer token.
	AccessToken string

	// RefreshToken is set when the provider issued (or rotated) one.
	// On refresh, an empty value means the previous refresh token is still
	// valid and must be kept.
	RefreshToken string

	// TokenType is typically "Bearer".
	TokenType string

	// ExpiresAt is when the access token expires; zero means unknown or
	// non-expiring.
	ExpiresAt time.Time

	// ClientID and ClientSecret are the client credentials that must be
	// persisted alongside the token for future refreshes. Set by adapters
	// that register or configure clients per source (MCP).
	ClientID     string
	ClientSecret string

	// IdentityHint is an account or team identifier useful for UI display
	// (e.g. an email address or Slack team name). Informational only.
	IdentityHint string
}

// Adapter is the uniform interface over one provider family's OAuth wire
// protocol. Implementations are safe for concurrent use.
type Adapter interface {
	// Authorize runs the interactive authorization flow and exchanges the
	// resulting code for tokens. Cancelling ctx tears down the local
	// callback server and discards in-memory PKCE state.
	Authorize(ctx context.Context, req AuthorizeRequest) (*Grant, error)

	// Refresh obtains a new access token from a refresh token.
	Refresh(ctx context.Context, req RefreshRequest) (*Grant, error)
}
