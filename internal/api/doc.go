// Package api exposes the job manager over HTTP and defines the wire-format
// types shared by the daemon server and the CLI client.
//
// # Key Types
//
// Job: transport representation of a transcription job with its settings,
// stage list, validation outcome, and export paths.
//
// Server: gorilla/mux router for job management plus a websocket endpoint
// that streams job events.
//
// Client: HTTP client used by the CLI when a daemon is reachable.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Errors are returned as {"error": ..., "kind": ...} where kind is the
// services error classification, and the HTTP status is derived from it.
package api
