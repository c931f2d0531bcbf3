package credential

import (
	"encoding/json"
	"time"
)

// RefreshLead is how long before expiry a token becomes eligible for
// proactive refresh, so in-flight requests do not start failing with a
// just-expired token.
const RefreshLead = 5 * time.Minute

// StoredCredential is the secret material kept for one credential identity.
// Value is the bearer/access token, or a JSON-encoded structured payload for
// basic and multi-header credentials. The Store owns persistence; everything
// else only holds transient copies during an operation.
type StoredCredential struct {
	// Value is the token or JSON-encoded payload.
	Value string `json:"value"`

	// RefreshToken enables silent refresh. When absent the credential can
	// never be refreshed and expiry requires full re-authentication.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is the access token expiry in epoch milliseconds.
	// Zero means the credential never expires (e.g. PATs).
	ExpiresAt int64 `json:"expires_at,omitempty"`

	// ClientID and ClientSecret are the OAuth client credentials needed for
	// future refreshes, for providers that issue them per source.
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// Extra preserves fields written by newer versions so a read-modify-write
	// cycle never silently drops them.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownCredentialFields are the JSON keys owned by this version of the
// schema; everything else round-trips through Extra.
var knownCredentialFields = []string{
	"value", "refresh_token", "expires_at", "client_id",
	"client_secret", "token_type",
}

// credentialAlias strips the methods so the custom codecs below don't recurse.
type credentialAlias StoredCredential

// UnmarshalJSON decodes the known fields and captures unknown ones in Extra.
func (c *StoredCredential) UnmarshalJSON(data []byte) error {
	var a credentialAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownCredentialFields {
		delete(raw, k)
	}
	if len(raw) > 0 {
		a.Extra = raw
	}

	*c = StoredCredential(a)
	return nil
}

// MarshalJSON re-emits the known fields plus anything preserved in Extra.
func (c StoredCredential) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(credentialAlias(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// IsExpired reports whether the access token is past its expiry. Credentials
// without an expiry never expire.
func (c *StoredCredential) IsExpired() bool {
	if c == nil {
		return true
	}
	if c.ExpiresAt == 0 {
		return false
	}
	return time.Now().UnixMilli() > c.ExpiresAt
}

// NeedsRefresh reports whether the token is inside the proactive refresh
// window. Credentials without an expiry never need refreshing.
func (c *StoredCredential) NeedsRefresh() bool {
	if c == nil || c.ExpiresAt == 0 {
		return false
	}
	return time.Now().UnixMilli() > c.ExpiresAt-RefreshLead.Milliseconds()
}

// ExpiryTime returns the expiry as a time.Time, zero when unset.
func (c *StoredCredential) ExpiryTime() time.Time {
	if c == nil || c.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.ExpiresAt)
}
