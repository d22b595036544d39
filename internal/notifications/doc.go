// Package notifications pushes finished-job messages to ntfy.
//
// NewService returns a no-op Service when no topic is configured, so callers
// never branch on whether notifications are enabled. Watch turns the workflow
// manager's event stream into one message per finished run.
package notifications
