// Package preflight provides readiness checks for the directories, external
// tools, and Gemini credentials subforge depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs failures, and reports the
//     results on GET /api/status.
//   - The CLI "subforge status" command renders RunAll, plus an optional
//     live Gemini check and a daemon probe.
//
// Optional checks never make Failed report true.
package preflight
