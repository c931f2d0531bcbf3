// Package source defines the Source model: a configured external integration
// (MCP server or REST API) the agent can call on behalf of a workspace.
//
// The package owns:
//   - the Source type and its type-specific MCP/API configuration,
//   - the needs-authentication predicate used by the UI and session layers,
//   - YAML persistence of source definitions per workspace, including the
//     authentication side channel (MarkAuthenticated / MarkNeedsReauth)
//     through which the credential core records state transitions.
//
// Everything else treats Source as read-only. Credential material never
// lives here; see the credential package.
package source
