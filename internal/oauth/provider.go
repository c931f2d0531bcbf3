package oauth

import (
	"strings"

	"github.com/relayhq/relay/internal/source"
)

// Provider identifies the provider family an OAuth flow is dispatched to.
// The set is closed: both dispatch sites in the credential package switch
// over it exhaustively.
type Provider int

const (
	// ProviderNone means the source does not use OAuth at all.
	ProviderNone Provider = iota

	// ProviderGoogle covers Google Workspace APIs (Gmail, Calendar, Drive...).
	ProviderGoogle

	// ProviderSlack covers the Slack Web API.
	ProviderSlack

	// ProviderMicrosoft covers Microsoft Graph via Azure AD.
	ProviderMicrosoft

	// ProviderMCP is the generic OAuth 2.1 flow for remote MCP servers.
	ProviderMCP
)

// String returns the provider name.
func (p Provider) String() string {
	switch p {
	case ProviderGoogle:
		return "google"
	case ProviderSlack:
		return "slack"
	case ProviderMicrosoft:
		return "microsoft"
	case ProviderMCP:
		return "mcp"
	default:
		return "none"
	}
}

// ProviderFor resolves the provider family for a source. Order matters and
// mirrors the authenticate/refresh dispatch contract: a named OAuth-native
// provider wins over the source type, then MCP servers that declare oauth,
// then ProviderNone for everything else (bearer, basic, api-key, local).
func ProviderFor(src *source.Source) Provider {
	if src == nil {
		return ProviderNone
	}

	switch strings.ToLower(src.Provider) {
	case "google":
		return ProviderGoogle
	case "slack":
		return ProviderSlack
	case "microsoft":
		return ProviderMicrosoft
	}

	if src.Type == source.TypeMCP && src.DeclaredAuthType() == source.AuthOAuth {
		return ProviderMCP
	}

	return ProviderNone
}

// IsOAuthNative reports whether the named provider obtains its tokens through
// an OAuth handshake regardless of how the API call itself sends them.
func IsOAuthNative(provider string) bool {
	switch strings.ToLower(provider) {
	case "google", "slack", "microsoft":
		return true
	default:
		return false
	}
}
