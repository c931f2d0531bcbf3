package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// SlackAdapter performs OAuth flows against Slack's endpoints.
type SlackAdapter struct {
	cfg AdapterConfig
}

// NewSlackAdapter creates a Slack adapter.
func NewSlackAdapter(cfg AdapterConfig) *SlackAdapter {
	return &SlackAdapter{cfg: cfg}
}

func (a *SlackAdapter) clientFor(reqID, reqSecret string) (string, string, error) {
	clientID, clientSecret := reqID, reqSecret
	if clientID == "" {
		clientID, clientSecret = a.cfg.ClientID, a.cfg.ClientSecret
	}
	if clientID == "" {
		return "", "", fmt.Errorf("slack OAuth client is not configured")
	}
	return clientID, clientSecret, nil
}

// Authorize runs the Slack authorization-code flow.
func (a *SlackAdapter) Authorize(ctx context.Context, req AuthorizeRequest) (*Grant, error) {
	clientID, clientSecret, err := a.clientFor(req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	token, err := runAuthCodeFlow(ctx, a.cfg.CallbackPort, req.Callbacks,
		func(ctx context.Context, redirectURI string) (*oauth2.Config, error) {
			return &oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Endpoint:     endpoints.Slack,
				Scopes:       req.Scopes,
			}, nil
		},
	)
	if err != nil {
		return nil, err
	}

	grant := grantFromToken(token, clientID, clientSecret)
	grant.IdentityHint = slackTeamHint(token)
	return grant, nil
}

// Refresh obtains a new access token from a refresh token. Slack only issues
// refresh tokens for apps with token rotation enabled; rotation is handled by
// the caller keeping the previous token when none comes back.
func (a *SlackAdapter) Refresh(ctx context.Context, req RefreshRequest) (*Grant, error) {
	clientID, clientSecret, err := a.clientFor(req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoints.Slack,
	}

	token, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: req.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("slack token refresh failed: %w", err)
	}

	return refreshedGrant(token, req.RefreshToken), nil
}

// slackTeamHint extracts the workspace name from Slack's token response,
// which includes a team object alongside the standard OAuth fields.
func slackTeamHint(token *oauth2.Token) string {
	team, ok := token.Extra("team").(map[string]interface{})
	if !ok {
		return ""
	}
	if name, ok := team["name"].(string); ok {
		return name
	}
	if id, ok := team["id"].(string); ok {
		return id
	}
	return ""
}
