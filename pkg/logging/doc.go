// Package logging provides the shared logging facility for relay.
//
// It wraps log/slog with a subsystem tag so log lines can be attributed to
// the component that emitted them (e.g. "Credential", "OAuth", "SourceConfig").
//
// Two modes are supported:
//   - CLI mode: entries are written to the configured writer as slog text.
//   - UI mode: entries are delivered on a buffered channel so the UI layer
//     can render them without the logger writing to the terminal.
//
// Token values and other secrets must never be passed to the logging
// functions; log identifiers, URLs and booleans instead.
package logging
