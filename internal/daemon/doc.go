// Package daemon coordinates the long-running subforge process.
//
// It wires configuration, the job store, the workflow manager, and the HTTP
// API into a single lifecycle with flock-based locking to prevent multiple
// instances. On startup it marks jobs left processing by a previous process
// as interrupted, loads the job history, and logs preflight results.
//
// Keep orchestration logic here: pipeline steps live in workflow while the
// daemon focuses on startup, shutdown, and status reporting.
package daemon
