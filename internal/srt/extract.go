package srt

import "strings"

const fence = "```"

// ExtractContent returns the body of the first fenced block in text,
// preferring a block tagged srt. Text without a complete fence is returned
// unchanged.
func ExtractContent(text string) string {
	if body, ok := fencedBody(text, fence+"srt"); ok {
		return body
	}
	if body, ok := fencedBody(text, fence); ok {
		return body
	}
	return text
}

func fencedBody(text, opener string) (string, bool) {
	start := strings.Index(text, opener)
	if start < 0 {
		return "", false
	}
	contentStart := start + len(opener)
	end := strings.Index(text[contentStart:], fence)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(text[contentStart : contentStart+end]), true
}
