package source

// Type identifies how a source is integrated.
type Type string

const (
	// TypeMCP is a Model Context Protocol server (local or remote).
	TypeMCP Type = "mcp"

	// TypeAPI is a plain REST API integration.
	TypeAPI Type = "api"

	// TypeLocal is a local integration that never authenticates.
	TypeLocal Type = "local"
)

// AuthType describes how a source expects credentials to be supplied.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthOAuth  AuthType = "oauth"
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthHeader AuthType = "header"
	AuthQuery  AuthType = "query"
)

// Transport describes how an MCP server is reached.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
	TransportSSE   Transport = "sse"
)

// Connection status values persisted on a source.
const (
	// StatusConnected indicates the source is authenticated and usable.
	StatusConnected = "connected"

	// StatusNeedsAuth indicates the source requires (re-)authentication.
	StatusNeedsAuth = "needs_auth"

	// StatusDisconnected indicates the source is not currently connected.
	StatusDisconnected = "disconnected"

	// StatusError indicates the source encountered a non-auth error.
	StatusError = "error"
)

// MCPConfig holds the MCP-specific configuration of a source.
type MCPConfig struct {
	// URL is the endpoint of a remote MCP server. Empty for stdio servers.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Transport is how the server is reached: stdio, http or sse.
	Transport Transport `yaml:"transport,omitempty" json:"transport,omitempty"`

	// AuthType is how the server authenticates. Defaults to oauth for
	// network transports when unset.
	AuthType AuthType `yaml:"authType,omitempty" json:"authType,omitempty"`

	// Scopes are explicit OAuth scopes to request, if any.
	Scopes []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`
}

// APIConfig holds the REST-API-specific configuration of a source.
type APIConfig struct {
	// BaseURL is the root URL API requests are issued against.
	BaseURL string `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`

	// AuthType is how credentials are sent: bearer, basic, header or query.
	AuthType AuthType `yaml:"authType,omitempty" json:"authType,omitempty"`

	// Service names a predefined OAuth service (e.g. "gmail", "calendar")
	// for OAuth-native providers. Used when Scopes is empty.
	Service string `yaml:"service,omitempty" json:"service,omitempty"`

	// Scopes are explicit OAuth scopes; they take precedence over Service.
	Scopes []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`

	// HeaderNames lists the header keys for multi-header credentials.
	HeaderNames []string `yaml:"headerNames,omitempty" json:"headerNames,omitempty"`
}

// Source describes a configured external integration: an MCP server or a
// REST API the agent can call. The credential core treats Source as
// read-only; the only permitted mutations go through Storage.MarkAuthenticated
// and Storage.MarkNeedsReauth.
type Source struct {
	// Slug is the unique name of the source within its workspace.
	Slug string `yaml:"slug" json:"slug"`

	// WorkspaceID identifies the workspace this source belongs to.
	WorkspaceID string `yaml:"workspaceId" json:"workspaceId"`

	// Type is the integration type: mcp, api or local.
	Type Type `yaml:"type" json:"type"`

	// Provider is the provider name, e.g. "google", "slack", "microsoft",
	// or a free-form name for generic APIs.
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`

	// Enabled controls whether the source participates in tool execution.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// IsAuthenticated records whether a successful authentication happened.
	IsAuthenticated bool `yaml:"isAuthenticated" json:"isAuthenticated"`

	// ConnectionStatus is the persisted connection state (see Status*).
	ConnectionStatus string `yaml:"connectionStatus,omitempty" json:"connectionStatus,omitempty"`

	// ConnectionError is a human-readable reason for the last failure.
	ConnectionError string `yaml:"connectionError,omitempty" json:"connectionError,omitempty"`

	// MCP holds MCP-specific configuration; set only when Type is mcp.
	MCP *MCPConfig `yaml:"mcp,omitempty" json:"mcp,omitempty"`

	// API holds API-specific configuration; set only when Type is api.
	API *APIConfig `yaml:"api,omitempty" json:"api,omitempty"`
}

// DeclaredAuthType returns the auth type the source declares, or AuthNone
// when no type-specific configuration is present.
func (s *Source) DeclaredAuthType() AuthType {
	switch s.Type {
	case TypeMCP:
		if s.MCP != nil {
			return s.MCP.AuthType
		}
	case TypeAPI:
		if s.API != nil {
			return s.API.AuthType
		}
	}
	return AuthNone
}

// IsStdioMCP reports whether the source is an MCP server reached over stdio.
// Stdio servers run locally and never need network authentication.
func (s *Source) IsStdioMCP() bool {
	return s.Type == TypeMCP && s.MCP != nil && s.MCP.Transport == TransportStdio
}

// Endpoint returns the network endpoint of the source: the MCP server URL
// or the API base URL. Empty for local sources.
func (s *Source) Endpoint() string {
	switch s.Type {
	case TypeMCP:
		if s.MCP != nil {
			return s.MCP.URL
		}
	case TypeAPI:
		if s.API != nil {
			return s.API.BaseURL
		}
	}
	return ""
}

// NeedsAuthentication reports whether the source requires user action to
// become usable. Local sources, stdio MCP servers and sources that declare
// no auth never need authentication. For everything else the answer is
// whether the source has not yet authenticated.
//
// Enabled is deliberately ignored: a disabled-but-unauthenticated source
// should not be flagged as needing user action, and that filtering belongs
// to the caller (see SourcesNeedingAuth).
func NeedsAuthentication(s *Source) bool {
	if s == nil || s.Type == TypeLocal {
		return false
	}
	if s.IsStdioMCP() {
		return false
	}
	at := s.DeclaredAuthType()
	if at == AuthNone || at == "" {
		return false
	}
	return !s.IsAuthenticated
}

// SourcesNeedingAuth filters the given sources down to the enabled ones that
// need authentication.
func SourcesNeedingAuth(sources []*Source) []*Source {
	var out []*Source
	for _, s := range sources {
		if s != nil && s.Enabled && NeedsAuthentication(s) {
			out = append(out, s)
		}
	}
	return out
}
