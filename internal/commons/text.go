package commons

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// maxSanitizePasses bounds how many layers of entity encoding are peeled.
const maxSanitizePasses = 4

// PlainText strips every HTML element from user-supplied free text and
// trims the result. Entity-encoded markup is decoded and stripped as well,
// so the stored text holds no tags however many times it was escaped.
func PlainText(s string) string {
	current := s
	for i := 0; i < maxSanitizePasses; i++ {
		sanitized := strictPolicy.Sanitize(current)
		decoded := html.UnescapeString(sanitized)
		if decoded == current {
			return strings.TrimSpace(decoded)
		}
		current = decoded
	}
	// still changing: keep the escaped form, which renders inert
	return strings.TrimSpace(strictPolicy.Sanitize(current))
}
