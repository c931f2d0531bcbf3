package oauth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// IDTokenClaims holds the identity claims extracted from a JWT ID token.
// Used for UI display hints only; no signature validation is performed and
// nothing security-relevant may be derived from these values.
type IDTokenClaims struct {
	// Subject is the unique user identifier (sub claim).
	Subject string `json:"sub"`
	// Email is the user's email address (email claim).
	Email string `json:"email"`
	// Name is the display name (name claim), when present.
	Name string `json:"name"`
}

// ParseIDTokenClaims decodes the payload segment of a JWT without verifying
// its signature.
func ParseIDTokenClaims(idToken string) (*IDTokenClaims, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed JWT: expected 3 segments, got %d", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWT payload: %w", err)
	}

	var claims IDTokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse JWT claims: %w", err)
	}

	return &claims, nil
}

// identityHintFromIDToken extracts a display hint from an ID token, preferring
// the email claim. Empty when the token is absent or unparseable.
func identityHintFromIDToken(idToken string) string {
	if idToken == "" {
		return ""
	}
	claims, err := ParseIDTokenClaims(idToken)
	if err != nil {
		return ""
	}
	if claims.Email != "" {
		return claims.Email
	}
	return claims.Subject
}
