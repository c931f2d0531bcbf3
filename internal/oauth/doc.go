// Package oauth implements the provider-facing half of relay's credential
// core: one Adapter per provider family performs the authorize + exchange +
// refresh handshake and returns a normalized Grant.
//
// # Adapters
//
//   - MCPAdapter: generic OAuth 2.1 for remote MCP servers. Discovers the
//     authorization server via RFC 8414 (with OIDC discovery fallback),
//     registers a client dynamically (RFC 7591) when none is configured, and
//     runs a PKCE authorization-code flow through a local callback server.
//   - GoogleAdapter, SlackAdapter, MicrosoftAdapter: fixed-endpoint flows
//     built on golang.org/x/oauth2.
//
// # Dispatch
//
// The Provider enum is closed; the authenticate and refresh dispatch sites in
// the credential package switch over it exhaustively, so adding a provider is
// a compile-visible change at both sites rather than a string comparison that
// can silently miss.
//
// Adapters never persist anything. The credential package owns storage and
// decides what part of a Grant is kept.
package oauth
