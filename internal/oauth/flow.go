package oauth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/relayhq/relay/pkg/logging"
)

// runAuthCodeFlow executes a PKCE authorization-code flow: it starts the
// local callback server, builds the provider config via build (which receives
// the redirect URI, so adapters that register clients dynamically can do it
// there), sends the user to the authorization URL, waits for the redirect and
// exchanges the code.
//
// Cancelling ctx tears down the callback server; the verifier and state only
// ever live on this stack frame.
func runAuthCodeFlow(ctx context.Context, port int, cb Callbacks, build func(ctx context.Context, redirectURI string) (*oauth2.Config, error), extra ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, CallbackTimeout)
	defer cancel()

	srv := NewCallbackServer(port)
	redirectURI, err := srv.Start(ctx)
	if err != nil {
		return nil, err
	}
	defer srv.Stop()

	cfg, err := build(ctx, redirectURI)
	if err != nil {
		return nil, err
	}
	cfg.RedirectURL = redirectURI

	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	opts := append([]oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}, extra...)
	authURL := cfg.AuthCodeURL(state, opts...)

	logging.Debug("OAuth", "Opening authorization URL on port %d", srv.Port())
	if err := cb.openURL(authURL); err != nil {
		return nil, fmt.Errorf("failed to open authorization URL: %w", err)
	}

	result, err := srv.WaitForCallback(ctx)
	if err != nil {
		return nil, fmt.Errorf("authorization was not completed: %w", err)
	}
	if result.IsError() {
		return nil, fmt.Errorf("authorization failed: %s (%s)", result.Error, result.ErrorDescription)
	}
	if result.State != state {
		return nil, fmt.Errorf("state mismatch in authorization callback")
	}

	token, err := cfg.Exchange(ctx, result.Code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	return token, nil
}

// grantFromToken normalizes an oauth2 token into a Grant.
func grantFromToken(token *oauth2.Token, clientID, clientSecret string) *Grant {
	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &Grant{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    tokenType,
		ExpiresAt:    token.Expiry,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

// refreshedGrant normalizes a refresh result. An unchanged refresh token is
// reported as empty so the caller keeps the stored one; a rotated token (as
// Microsoft issues) comes through and must replace it.
func refreshedGrant(token *oauth2.Token, previousRefreshToken string) *Grant {
	grant := grantFromToken(token, "", "")
	if grant.RefreshToken == previousRefreshToken {
		grant.RefreshToken = ""
	}
	return grant
}

// extraString pulls a string field out of a token response's extra data.
func extraString(token *oauth2.Token, key string) string {
	if v := token.Extra(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
