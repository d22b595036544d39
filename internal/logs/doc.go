// Package logs tails the subforge log file for `subforge logs`.
//
// Tail prints the last lines with bounded memory and, in follow mode, polls
// for appended lines until the context ends. A truncated or rotated file is
// read again from the start. Lines may be filtered by job ID or level before
// they reach the caller.
package logs
