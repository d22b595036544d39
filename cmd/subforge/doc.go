// Package main hosts the subforge CLI entrypoint and command graph.
//
// The Cobra command tree covers one-shot transcription, job management
// against the daemon's HTTP API (falling back to the job store when no
// daemon answers), SRT validation, the daemon itself, preflight status, and
// configuration scaffolding. Configuration resolution and client discovery
// live in commandContext so subcommands stay declarative.
package main
