package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// AdapterConfig configures a fixed-endpoint adapter with the application's
// registered OAuth client for that provider.
type AdapterConfig struct {
	// ClientID is the application's client ID at the provider.
	ClientID string

	// ClientSecret is the application's client secret. Empty for providers
	// where relay runs as a public client.
	ClientSecret string

	// CallbackPort pins the local callback server to a fixed port, for
	// providers that require exact redirect URI registration. 0 picks a
	// free port.
	CallbackPort int
}

// GoogleAdapter performs OAuth flows against Google's endpoints.
type GoogleAdapter struct {
	cfg AdapterConfig
}

// NewGoogleAdapter creates a Google adapter.
func NewGoogleAdapter(cfg AdapterConfig) *GoogleAdapter {
	return &GoogleAdapter{cfg: cfg}
}

func (a *GoogleAdapter) clientFor(reqID, reqSecret string) (string, string, error) {
	clientID, clientSecret := reqID, reqSecret
	if clientID == "" {
		clientID, clientSecret = a.cfg.ClientID, a.cfg.ClientSecret
	}
	if clientID == "" {
		return "", "", fmt.Errorf("google OAuth client is not configured")
	}
	return clientID, clientSecret, nil
}

// Authorize runs the Google authorization-code flow. access_type=offline and
// prompt=consent are required or Google omits the refresh token on repeat
// authorizations.
func (a *GoogleAdapter) Authorize(ctx context.Context, req AuthorizeRequest) (*Grant, error) {
	clientID, clientSecret, err := a.clientFor(req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	token, err := runAuthCodeFlow(ctx, a.cfg.CallbackPort, req.Callbacks,
		func(ctx context.Context, redirectURI string) (*oauth2.Config, error) {
			return &oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Endpoint:     endpoints.Google,
				Scopes:       req.Scopes,
			}, nil
		},
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	if err != nil {
		return nil, err
	}

	grant := grantFromToken(token, clientID, clientSecret)
	grant.IdentityHint = identityHintFromIDToken(extraString(token, "id_token"))
	return grant, nil
}

// Refresh obtains a new access token from a refresh token.
func (a *GoogleAdapter) Refresh(ctx context.Context, req RefreshRequest) (*Grant, error) {
	clientID, clientSecret, err := a.clientFor(req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoints.Google,
	}

	token, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: req.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("google token refresh failed: %w", err)
	}

	return refreshedGrant(token, req.RefreshToken), nil
}
