package credential

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/relayhq/relay/internal/oauth"
	"github.com/relayhq/relay/internal/source"
	"github.com/relayhq/relay/pkg/logging"
)

const subsystem = "Credential"

// AuthResult is the outcome of an Authenticate call. Transient, never
// persisted.
type AuthResult struct {
	// Success is whether a credential was obtained and stored.
	Success bool

	// Error is the human-readable failure reason when Success is false.
	Error string

	// IdentityHint is an account or team identifier for UI display, e.g.
	// "dev@example.com". Informational only.
	IdentityHint string
}

// Adapters holds one OAuth adapter per provider family. All four must be set
// for the corresponding providers to be usable; a nil adapter surfaces as an
// authentication failure, not a panic.
type Adapters struct {
	MCP       oauth.Adapter
	Google    oauth.Adapter
	Slack     oauth.Adapter
	Microsoft oauth.Adapter
}

// DefaultAdapters builds the production adapter set from the application's
// registered OAuth clients.
func DefaultAdapters(google, slack, microsoft oauth.AdapterConfig) Adapters {
	return Adapters{
		MCP:       oauth.NewMCPAdapter(),
		Google:    oauth.NewGoogleAdapter(google),
		Slack:     oauth.NewSlackAdapter(slack),
		Microsoft: oauth.NewMicrosoftAdapter(microsoft),
	}
}

// Manager is the credential lifecycle orchestrator. One instance exists per
// process, constructed at startup and passed to callers by reference; the
// single-flight refresh map depends on that.
type Manager struct {
	store    Store
	sources  *source.Storage
	adapters Adapters

	// refreshes deduplicates concurrent refreshes per source. Entries are
	// created on first call for a key and removed the instant the shared
	// call settles, success or failure.
	refreshes singleflight.Group
}

// NewManager creates a credential manager.
func NewManager(store Store, sources *source.Storage, adapters Adapters) *Manager {
	return &Manager{
		store:    store,
		sources:  sources,
		adapters: adapters,
	}
}

// Save persists a credential under the source's resolved identity. The token
// shape is not validated; the authenticate and refresh paths own correctness.
func (m *Manager) Save(ctx context.Context, src *source.Source, cred *StoredCredential) error {
	return m.store.Set(ctx, ResolveID(src), cred)
}

// Load reads the credential for a source, or (nil, nil) when none exists.
//
// For MCP sources with a network transport and declared auth, both the OAuth
// and the Bearer identity are probed, preferring OAuth: a source's auth mode
// may have changed over its lifetime, leaving the credential stored under
// the other identity. This is a compatibility fallback, not a healthy steady
// state.
func (m *Manager) Load(ctx context.Context, src *source.Source) (*StoredCredential, error) {
	for _, id := range m.probeIDs(src) {
		cred, err := m.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if cred != nil {
			return cred, nil
		}
	}
	return nil, nil
}

// Delete removes the credential(s) for a source. Returns true when anything
// was deleted. The same identities Load probes are deleted, so an MCP
// credential left under the legacy identity does not survive a logout.
func (m *Manager) Delete(ctx context.Context, src *source.Source) (bool, error) {
	deleted := false
	for _, id := range m.probeIDs(src) {
		existed, err := m.store.Delete(ctx, id)
		if err != nil {
			return deleted, err
		}
		deleted = deleted || existed
	}
	return deleted, nil
}

// probeIDs returns the identities to probe for a source, most specific
// first.
func (m *Manager) probeIDs(src *source.Source) []ID {
	at := src.DeclaredAuthType()
	if src.Type == source.TypeMCP && !src.IsStdioMCP() && at != source.AuthNone && at != "" {
		base := ID{WorkspaceID: src.WorkspaceID, SourceID: src.Slug}
		oauthID, bearerID := base, base
		oauthID.Kind = KindOAuthBearer
		bearerID.Kind = KindBearer
		return []ID{oauthID, bearerID}
	}
	return []ID{ResolveID(src)}
}

// GetToken returns a usable access token for the source, or "" when none is
// stored or the stored one is expired. It never triggers a refresh; callers
// refresh proactively via Refresh so a read path never turns into a network
// round trip.
func (m *Manager) GetToken(ctx context.Context, src *source.Source) (string, error) {
	cred, err := m.Load(ctx, src)
	if err != nil {
		return "", err
	}
	if cred == nil || cred.IsExpired() {
		return "", nil
	}
	return cred.Value, nil
}

// HasValidCredentials reports whether a non-expired credential exists.
func (m *Manager) HasValidCredentials(ctx context.Context, src *source.Source) bool {
	token, err := m.GetToken(ctx, src)
	return err == nil && token != ""
}

// GetAPICredential returns the credential in the shape an API call sends:
// a plain token, a basic-auth pair, or named headers. (nil, nil) when no
// usable credential is stored.
func (m *Manager) GetAPICredential(ctx context.Context, src *source.Source) (APICredential, error) {
	cred, err := m.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	if cred == nil || cred.IsExpired() {
		return nil, nil
	}
	return decodeAPICredential(cred.Value, src), nil
}

// MarkNeedsReauth flips the source's persisted state to needs_auth with the
// given reason. Best-effort: it is always called from an already-failing
// path, so its own failure is logged and swallowed rather than masking the
// original one.
func (m *Manager) MarkNeedsReauth(src *source.Source, reason string) {
	if err := m.sources.MarkNeedsReauth(src.WorkspaceID, src.Slug, reason); err != nil {
		logging.Warn(subsystem, "Failed to mark source %s/%s as needing reauth: %v", src.WorkspaceID, src.Slug, err)
	}
}

// SourcesNeedingAuth filters the given sources down to the enabled ones that
// need user authentication.
func (m *Manager) SourcesNeedingAuth(sources []*source.Source) []*source.Source {
	return source.SourcesNeedingAuth(sources)
}

// Authenticate runs the interactive OAuth flow for a source, stores the
// resulting credential and flips the source's persisted auth state.
//
// All adapter failures are converted into AuthResult{Success: false};
// callers never need to recover from an error return. A source that does not
// use OAuth (bearer, basic, api-key) gets a descriptive failure, which is a
// normal outcome rather than a bug.
func (m *Manager) Authenticate(ctx context.Context, src *source.Source, callbacks oauth.Callbacks) AuthResult {
	provider := oauth.ProviderFor(src)
	adapter, err := m.adapterFor(provider)
	if err != nil {
		return AuthResult{Error: err.Error()}
	}

	scopes, err := oauth.ResolveScopes(provider, m.explicitScopes(src), m.declaredService(src), src.Endpoint())
	if err != nil {
		return AuthResult{Error: err.Error()}
	}

	logging.Info(subsystem, "Starting %s authentication for source %s/%s", provider, src.WorkspaceID, src.Slug)

	grant, err := adapter.Authorize(ctx, oauth.AuthorizeRequest{
		Endpoint:  src.Endpoint(),
		Scopes:    scopes,
		Callbacks: callbacks,
	})
	if err != nil {
		logging.Error(subsystem, err, "Authentication failed for source %s/%s", src.WorkspaceID, src.Slug)
		return AuthResult{Error: err.Error()}
	}

	if err := m.Save(ctx, src, credentialFromGrant(grant)); err != nil {
		logging.Error(subsystem, err, "Failed to store credential for source %s/%s", src.WorkspaceID, src.Slug)
		return AuthResult{Error: fmt.Sprintf("authentication succeeded but storing the credential failed: %v", err)}
	}

	// Side channel is best-effort; the credential itself is already safe.
	if err := m.sources.MarkAuthenticated(src.WorkspaceID, src.Slug); err != nil {
		logging.Warn(subsystem, "Failed to mark source %s/%s as authenticated: %v", src.WorkspaceID, src.Slug, err)
	}

	logging.Info(subsystem, "Authenticated source %s/%s", src.WorkspaceID, src.Slug)
	return AuthResult{Success: true, IdentityHint: grant.IdentityHint}
}

// Refresh obtains a fresh access token for the source, or "" when that is
// not possible. Single-flight per source: concurrent callers share one
// provider round trip and receive the same result, which matters for
// providers that rotate refresh tokens on use (Microsoft).
//
// Failures are never returned: they surface as "" plus a needs-reauth marker
// on the source. Refresh typically runs on background "is my token still
// good" paths where an error would crash unrelated request flows.
func (m *Manager) Refresh(ctx context.Context, src *source.Source) string {
	key := src.WorkspaceID + "/" + src.Slug

	// Do is an atomic check-and-insert: every concurrent caller for the key
	// attaches to the same in-flight call, and the entry is removed the
	// moment it settles regardless of outcome.
	token, _, _ := m.refreshes.Do(key, func() (interface{}, error) {
		return m.doRefresh(ctx, src), nil
	})
	return token.(string)
}

func (m *Manager) doRefresh(ctx context.Context, src *source.Source) string {
	cred, err := m.Load(ctx, src)
	if err != nil {
		// A store failure says nothing about the credential itself, so the
		// source is not marked for reauth.
		logging.Error(subsystem, err, "Failed to load credential for refresh of source %s/%s", src.WorkspaceID, src.Slug)
		return ""
	}
	if cred == nil || cred.RefreshToken == "" {
		// Not an error: absence of a refresh token means full
		// re-authentication is the only way forward. No network call.
		logging.Debug(subsystem, "No refresh token for source %s/%s; re-authentication required", src.WorkspaceID, src.Slug)
		return ""
	}

	provider := oauth.ProviderFor(src)
	adapter, err := m.adapterFor(provider)
	if err != nil {
		logging.Warn(subsystem, "Cannot refresh source %s/%s: %v", src.WorkspaceID, src.Slug, err)
		return ""
	}

	grant, err := adapter.Refresh(ctx, oauth.RefreshRequest{
		Endpoint:     src.Endpoint(),
		RefreshToken: cred.RefreshToken,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
	})
	if err != nil {
		logging.Warn(subsystem, "Token refresh failed for source %s/%s: %v", src.WorkspaceID, src.Slug, err)
		m.MarkNeedsReauth(src, err.Error())
		return ""
	}

	merged := *cred
	merged.Value = grant.AccessToken
	merged.TokenType = grant.TokenType
	if grant.ExpiresAt.IsZero() {
		merged.ExpiresAt = 0
	} else {
		merged.ExpiresAt = grant.ExpiresAt.UnixMilli()
	}
	// Providers that rotate refresh tokens return a new one; otherwise the
	// stored token stays valid and is kept.
	if grant.RefreshToken != "" {
		merged.RefreshToken = grant.RefreshToken
	}

	if err := m.Save(ctx, src, &merged); err != nil {
		// Returning the unpersisted token would desynchronize callers from
		// the store; treat the refresh as failed.
		logging.Error(subsystem, err, "Failed to persist refreshed credential for source %s/%s", src.WorkspaceID, src.Slug)
		return ""
	}

	logging.Debug(subsystem, "Refreshed token for source %s/%s (expires_at=%s)", src.WorkspaceID, src.Slug, merged.ExpiryTime().Format(time.RFC3339))
	return grant.AccessToken
}

// adapterFor dispatches a provider to its adapter. The switch is exhaustive
// over the closed Provider set; adding a provider means extending both this
// and ProviderFor.
func (m *Manager) adapterFor(p oauth.Provider) (oauth.Adapter, error) {
	var adapter oauth.Adapter
	switch p {
	case oauth.ProviderGoogle:
		adapter = m.adapters.Google
	case oauth.ProviderSlack:
		adapter = m.adapters.Slack
	case oauth.ProviderMicrosoft:
		adapter = m.adapters.Microsoft
	case oauth.ProviderMCP:
		adapter = m.adapters.MCP
	case oauth.ProviderNone:
		return nil, fmt.Errorf("source does not use OAuth (bearer, basic and api-key sources are configured with their credential directly)")
	default:
		return nil, fmt.Errorf("unhandled provider %s", p)
	}

	if adapter == nil {
		return nil, fmt.Errorf("no %s adapter configured", p)
	}
	return adapter, nil
}

func (m *Manager) explicitScopes(src *source.Source) []string {
	switch {
	case src.MCP != nil:
		return src.MCP.Scopes
	case src.API != nil:
		return src.API.Scopes
	default:
		return nil
	}
}

func (m *Manager) declaredService(src *source.Source) string {
	if src.API != nil {
		return src.API.Service
	}
	return ""
}

// credentialFromGrant normalizes an adapter grant into the stored shape.
func credentialFromGrant(g *oauth.Grant) *StoredCredential {
	cred := &StoredCredential{
		Value:        g.AccessToken,
		RefreshToken: g.RefreshToken,
		TokenType:    g.TokenType,
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
	}
	if !g.ExpiresAt.IsZero() {
		cred.ExpiresAt = g.ExpiresAt.UnixMilli()
	}
	return cred
}
