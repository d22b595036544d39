// Package srt parses, generates, and validates SubRip subtitle text.
//
// Parse is deliberately forgiving: blocks that do not look like subtitle
// records are skipped so callers can still show partial results. Validate
// is strict and reports every structural problem it finds in a single pass,
// which lets the workflow keep raw model output while withholding a broken
// record list.
package srt
