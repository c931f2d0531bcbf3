package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/relayhq/relay/pkg/logging"
)

const (
	// DefaultHTTPTimeout is the default timeout for discovery and
	// registration requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultMetadataCacheTTL is the default TTL for cached authorization
	// server metadata.
	DefaultMetadataCacheTTL = 30 * time.Minute
)

// NormalizeServerURL strips transport-specific path suffixes (/mcp, /sse) and
// trailing slashes so the same server yields the same issuer regardless of
// which endpoint path the source was configured with.
func NormalizeServerURL(serverURL string) string {
	serverURL = strings.TrimSuffix(serverURL, "/")
	serverURL = strings.TrimSuffix(serverURL, "/mcp")
	serverURL = strings.TrimSuffix(serverURL, "/sse")
	return serverURL
}

// Metadata is OAuth 2.0 Authorization Server Metadata (RFC 8414).
type Metadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	RegistrationEndpoint          string   `json:"registration_endpoint,omitempty"`
	ScopesSupported               []string `json:"scopes_supported,omitempty"`
	GrantTypesSupported           []string `json:"grant_types_supported,omitempty"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// clientRegistration is an RFC 7591 dynamic client registration request and
// the fields of its response we use.
type clientRegistration struct {
	ClientID                string   `json:"client_id,omitempty"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
}

type metadataCacheEntry struct {
	metadata  *Metadata
	fetchedAt time.Time
}

// MCPAdapter is the generic OAuth 2.1 adapter for remote MCP servers. The
// server URL doubles as the issuer for metadata discovery; servers without a
// preconfigured client get one through dynamic registration.
type MCPAdapter struct {
	httpClient   *http.Client
	callbackPort int

	metadataMu    sync.RWMutex
	metadataCache map[string]*metadataCacheEntry
	metadataTTL   time.Duration

	// metadataGroup deduplicates concurrent discovery fetches per issuer.
	metadataGroup singleflight.Group
}

// MCPOption configures the MCP adapter.
type MCPOption func(*MCPAdapter)

// WithHTTPClient sets a custom HTTP client for discovery and registration.
func WithHTTPClient(httpClient *http.Client) MCPOption {
	return func(a *MCPAdapter) {
		a.httpClient = httpClient
	}
}

// WithCallbackPort pins the local callback server to a fixed port.
func WithCallbackPort(port int) MCPOption {
	return func(a *MCPAdapter) {
		a.callbackPort = port
	}
}

// WithMetadataCacheTTL sets the metadata cache TTL.
func WithMetadataCacheTTL(ttl time.Duration) MCPOption {
	return func(a *MCPAdapter) {
		a.metadataTTL = ttl
	}
}

// NewMCPAdapter creates a generic MCP OAuth adapter.
func NewMCPAdapter(opts ...MCPOption) *MCPAdapter {
	a := &MCPAdapter{
		httpClient:    &http.Client{Timeout: DefaultHTTPTimeout},
		metadataCache: make(map[string]*metadataCacheEntry),
		metadataTTL:   DefaultMetadataCacheTTL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize runs a PKCE authorization-code flow against the MCP server's
// authorization server.
func (a *MCPAdapter) Authorize(ctx context.Context, req AuthorizeRequest) (*Grant, error) {
	issuer := NormalizeServerURL(req.Endpoint)
	if issuer == "" {
		return nil, fmt.Errorf("mcp source has no server URL to authenticate against")
	}

	md, err := a.DiscoverMetadata(ctx, issuer)
	if err != nil {
		return nil, err
	}

	// Captured by the build closure; carried into the Grant so refresh can
	// reuse the registered client.
	var clientID, clientSecret string

	token, err := runAuthCodeFlow(ctx, a.callbackPort, req.Callbacks,
		func(ctx context.Context, redirectURI string) (*oauth2.Config, error) {
			clientID, clientSecret = req.ClientID, req.ClientSecret
			if clientID == "" {
				var err error
				clientID, clientSecret, err = a.registerClient(ctx, md, redirectURI)
				if err != nil {
					return nil, err
				}
			}

			return &oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Endpoint: oauth2.Endpoint{
					AuthURL:   md.AuthorizationEndpoint,
					TokenURL:  md.TokenEndpoint,
					AuthStyle: oauth2.AuthStyleInParams,
				},
				Scopes: req.Scopes,
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

// Refresh obtains a new access token from the server's token endpoint using
// the client credentials persisted at authorization time.
func (a *MCPAdapter) Refresh(ctx context.Context, req RefreshRequest) (*Grant, error) {
	issuer := NormalizeServerURL(req.Endpoint)
	if issuer == "" {
		return nil, fmt.Errorf("mcp source has no server URL to refresh against")
	}
	if req.ClientID == "" {
		return nil, fmt.Errorf("no client_id stored for mcp source; re-authentication is required")
	}

	md, err := a.DiscoverMetadata(ctx, issuer)
	if err != nil {
		return nil, err
	}

	cfg := &oauth2.Config{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   md.AuthorizationEndpoint,
			TokenURL:  md.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	token, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: req.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("mcp token refresh failed: %w", err)
	}

	return refreshedGrant(token, req.RefreshToken), nil
}

// DiscoverMetadata fetches authorization server metadata from the issuer's
// well-known endpoints. It tries RFC 8414 first, then falls back to OpenID
// Connect discovery. Results are cached with a TTL and concurrent fetches
// for the same issuer are deduplicated.
func (a *MCPAdapter) DiscoverMetadata(ctx context.Context, issuer string) (*Metadata, error) {
	issuer = strings.TrimSuffix(issuer, "/")

	a.metadataMu.RLock()
	if entry, ok := a.metadataCache[issuer]; ok {
		if time.Since(entry.fetchedAt) < a.metadataTTL {
			a.metadataMu.RUnlock()
			return entry.metadata, nil
		}
	}
	a.metadataMu.RUnlock()

	result, err, _ := a.metadataGroup.Do(issuer, func() (interface{}, error) {
		// Re-check after winning the singleflight slot.
		a.metadataMu.RLock()
		if entry, ok := a.metadataCache[issuer]; ok {
			if time.Since(entry.fetchedAt) < a.metadataTTL {
				a.metadataMu.RUnlock()
				return entry.metadata, nil
			}
		}
		a.metadataMu.RUnlock()

		return a.doDiscoverMetadata(ctx, issuer)
	})
	if err != nil {
		return nil, err
	}

	return result.(*Metadata), nil
}

func (a *MCPAdapter) doDiscoverMetadata(ctx context.Context, issuer string) (*Metadata, error) {
	md, err := a.fetchMetadata(ctx, issuer+"/.well-known/oauth-authorization-server")
	if err == nil {
		a.cacheMetadata(issuer, md)
		return md, nil
	}

	logging.Debug("OAuth", "RFC 8414 metadata fetch failed for %s, trying OIDC discovery: %v", issuer, err)

	md, err = a.fetchMetadata(ctx, issuer+"/.well-known/openid-configuration")
	if err == nil {
		a.cacheMetadata(issuer, md)
		return md, nil
	}

	return nil, fmt.Errorf("failed to discover OAuth metadata for %s: %w", issuer, err)
}

func (a *MCPAdapter) fetchMetadata(ctx context.Context, metadataURL string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var md Metadata
	if err := json.Unmarshal(body, &md); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if md.AuthorizationEndpoint == "" || md.TokenEndpoint == "" {
		return nil, fmt.Errorf("metadata from %s is missing authorization or token endpoint", metadataURL)
	}

	return &md, nil
}

func (a *MCPAdapter) cacheMetadata(issuer string, md *Metadata) {
	a.metadataMu.Lock()
	a.metadataCache[issuer] = &metadataCacheEntry{metadata: md, fetchedAt: time.Now()}
	a.metadataMu.Unlock()

	logging.Debug("OAuth", "Cached authorization server metadata for %s", issuer)
}

// registerClient performs RFC 7591 dynamic client registration as a public
// client, returning the issued client credentials.
func (a *MCPAdapter) registerClient(ctx context.Context, md *Metadata, redirectURI string) (string, string, error) {
	if md.RegistrationEndpoint == "" {
		return "", "", fmt.Errorf("no client_id configured and server %s does not support dynamic client registration", md.Issuer)
	}

	reg := clientRegistration{
		ClientName:              "relay",
		RedirectURIs:            []string{redirectURI},
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		TokenEndpointAuthMethod: "none",
	}

	payload, err := json.Marshal(reg)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal registration request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, md.RegistrationEndpoint, bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("client registration failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read registration response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("client registration failed with status %d", resp.StatusCode)
	}

	var issued clientRegistration
	if err := json.Unmarshal(body, &issued); err != nil {
		return "", "", fmt.Errorf("failed to parse registration response: %w", err)
	}
	if issued.ClientID == "" {
		return "", "", fmt.Errorf("registration response did not include a client_id")
	}

	logging.Debug("OAuth", "Registered OAuth client with %s", md.Issuer)
	return issued.ClientID, issued.ClientSecret, nil
}

// ClearMetadataCache drops all cached metadata. Useful in tests and when a
// server's endpoints change.
func (a *MCPAdapter) ClearMetadataCache() {
	a.metadataMu.Lock()
	a.metadataCache = make(map[string]*metadataCacheEntry)
	a.metadataMu.Unlock()
}
