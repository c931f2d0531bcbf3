package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// MicrosoftAdapter performs OAuth flows against Azure AD (common tenant) for
// Microsoft Graph.
//
// Microsoft rotates refresh tokens: every refresh response carries a new
// refresh token and invalidates the old one. This is why refresh for a source
// must be single-flight; two concurrent refreshes with the same stored token
// would have the second one fail and could invalidate the session.
type MicrosoftAdapter struct {
	cfg AdapterConfig
}

// NewMicrosoftAdapter creates a Microsoft adapter.
func NewMicrosoftAdapter(cfg AdapterConfig) *MicrosoftAdapter {
	return &MicrosoftAdapter{cfg: cfg}
}

func (a *MicrosoftAdapter) clientFor(reqID, reqSecret string) (string, string, error) {
	clientID, clientSecret := reqID, reqSecret
	if clientID == "" {
		clientID, clientSecret = a.cfg.ClientID, a.cfg.ClientSecret
	}
	if clientID == "" {
		return "", "", fmt.Errorf("microsoft OAuth client is not configured")
	}
	return clientID, clientSecret, nil
}

// Authorize runs the Azure AD authorization-code flow. The offline_access
// scope (added by scope resolution) is what makes a refresh token come back.
func (a *MicrosoftAdapter) Authorize(ctx context.Context, req AuthorizeRequest) (*Grant, error) {
	clientID, clientSecret, err := a.clientFor(req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	token, err := runAuthCodeFlow(ctx, a.cfg.CallbackPort, req.Callbacks,
		func(ctx context.Context, redirectURI string) (*oauth2.Config, error) {
			return &oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Endpoint:     endpoints.AzureAD("common"),
				Scopes:       req.Scopes,
			}, nil
		},
	)
	if err != nil {
		return nil, err
	}

	grant := grantFromToken(token, clientID, clientSecret)
	grant.IdentityHint = identityHintFromIDToken(extraString(token, "id_token"))
	return grant, nil
}

// Refresh obtains a new access token. The returned Grant carries the rotated
// refresh token, which the caller must persist in place of the old one.
func (a *MicrosoftAdapter) Refresh(ctx context.Context, req RefreshRequest) (*Grant, error) {
	clientID, clientSecret, err := a.clientFor(req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoints.AzureAD("common"),
	}

	token, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: req.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("microsoft token refresh failed: %w", err)
	}

	return refreshedGrant(token, req.RefreshToken), nil
}
