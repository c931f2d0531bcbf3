package credential

import (
	"fmt"

	"github.com/relayhq/relay/internal/oauth"
	"github.com/relayhq/relay/internal/source"
)

// Kind is the storage variant of a credential identity. The set is closed.
type Kind int

const (
	// KindOAuthBearer is a token obtained through an OAuth handshake. The
	// API call itself may still send it as a plain bearer header; the kind
	// records how the token is obtained, not how it is sent.
	KindOAuthBearer Kind = iota

	// KindBearer is a plain opaque token supplied by the user (e.g. a PAT).
	KindBearer

	// KindBasic is a username/password pair.
	KindBasic

	// KindAPIKey is a key sent in a custom header or query parameter.
	KindAPIKey
)

// String returns the kind's storage tag.
func (k Kind) String() string {
	switch k {
	case KindOAuthBearer:
		return "oauth"
	case KindBearer:
		return "bearer"
	case KindBasic:
		return "basic"
	case KindAPIKey:
		return "apikey"
	default:
		return "unknown"
	}
}

// ParseKind maps a storage tag back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "oauth":
		return KindOAuthBearer, nil
	case "bearer":
		return KindBearer, nil
	case "basic":
		return KindBasic, nil
	case "apikey":
		return KindAPIKey, nil
	default:
		return 0, fmt.Errorf("unknown credential kind %q", s)
	}
}

// ID is the structured identity a credential is stored under. It is derived
// deterministically from a Source, never stored independently and never
// mutated.
type ID struct {
	Kind        Kind
	WorkspaceID string
	SourceID    string
}

// Key returns the canonical storage key for the identity.
func (id ID) Key() string {
	return id.WorkspaceID + "/" + id.SourceID + "/" + id.Kind.String()
}

// ResolveID maps a source to its credential identity. Pure, total and
// deterministic: the same source shape always yields the same ID.
//
// Sources that never authenticate (local, stdio MCP, authType none) have no
// meaningful identity; callers short-circuit them via
// source.NeedsAuthentication before resolving. For totality they resolve to
// KindBearer.
func ResolveID(src *source.Source) ID {
	id := ID{WorkspaceID: src.WorkspaceID, SourceID: src.Slug}

	switch src.Type {
	case source.TypeMCP:
		if src.DeclaredAuthType() == source.AuthBearer {
			id.Kind = KindBearer
		} else {
			// oauth, or unset: network MCP servers default to OAuth.
			id.Kind = KindOAuthBearer
		}

	case source.TypeAPI:
		// OAuth-native providers keep a single OAuth identity regardless of
		// the API's own declared authType: the handshake is how the token is
		// obtained, the header is just how it is sent. A second identity for
		// the same token would be redundant.
		if oauth.IsOAuthNative(src.Provider) {
			id.Kind = KindOAuthBearer
			break
		}
		switch src.DeclaredAuthType() {
		case source.AuthBearer:
			id.Kind = KindBearer
		case source.AuthBasic:
			id.Kind = KindBasic
		default:
			// header, query or undeclared.
			id.Kind = KindAPIKey
		}

	default:
		id.Kind = KindBearer
	}

	return id
}
