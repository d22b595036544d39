// Package ffprobe reads audio metadata through the ffprobe binary.
//
// Inspect decodes ffprobe's JSON report into Result, whose helpers pick the
// duration used to bound subtitle timestamps. Prober adapts Inspect to the
// pipeline's duration lookup.
package ffprobe
