// Package queue owns the job model and its SQLite-backed history.
//
// Jobs are written through the Store after every accepted pipeline update so
// the CLI and HTTP API can inspect progress, and so completed or failed jobs
// survive a daemon restart. The workflow manager is the only writer of job
// state while a pipeline runs; the Store itself performs no state
// transitions beyond resetting runs interrupted by a shutdown.
package queue
