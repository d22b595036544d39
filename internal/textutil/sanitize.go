package textutil

import (
	"strings"
	"unicode"
)

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName turns an uploaded or suggested name into a safe base name
// for the upload and export directories. Path separators become dashes,
// control characters are dropped, and leading dots are removed so the
// result is never hidden, "." or "..". An empty result means no usable name.
func SanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = fileNameReplacer.Replace(strings.TrimSpace(name))
	return strings.TrimSpace(strings.TrimLeft(name, ". "))
}
