// Package credential implements relay's credential lifecycle core: it
// resolves which credential identity applies to a source, stores and loads
// secrets through a pluggable Store, coordinates OAuth flows across provider
// adapters, and guarantees at most one concurrent token refresh per source.
//
// # Identity resolution
//
// Every source maps deterministically to exactly one ID (workspace, source,
// kind). The resolution is pure and total; sources that never authenticate
// (local, stdio MCP, authType none) are expected to be short-circuited by
// callers via source.NeedsAuthentication before any credential operation.
//
// # Lifecycle
//
// A source conceptually moves Unauthenticated -> Authenticated ->
// NeedsRefresh -> Authenticated | NeedsReauth. The states are derived from
// the stored credential and the persisted source fields, not an explicit
// enum. NeedsReauth is terminal until a fresh Authenticate succeeds.
//
// # Refresh semantics
//
// Refresh is single-flight per source. Failures are never returned to the
// caller: they surface as an empty token plus a best-effort needs-reauth
// marker on the source, because refresh runs on background paths where an
// error would crash unrelated request flows.
//
// Authenticate and Refresh for the same source must not run concurrently;
// serializing them is a caller responsibility (in practice Authenticate is
// user-driven and Refresh is background-driven, and the UI disables one
// while the other runs).
package credential
