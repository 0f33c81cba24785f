// Package sanitize cleans untrusted text before it reaches the terminal.
package sanitize

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text strips markup and control characters from s, limits it to maxLen
// bytes and trims surrounding whitespace.
func Text(s string, maxLen int) string {
	s = html.UnescapeString(strict.Sanitize(s))

	var b strings.Builder
	b.Grow(min(len(s), maxLen))
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if b.Len()+len(string(r)) > maxLen {
			break
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
