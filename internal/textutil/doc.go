// Package textutil provides small text helpers shared by the pipeline and
// the CLI: filesystem-safe names for exported artifacts, display casing for
// topic labels, and snippet truncation for log and table output.
package textutil
