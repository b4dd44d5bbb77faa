// Package sanitize strips markup from member-supplied text (bios, event descriptions, names)
// before it is stored, so the web client can render it without escaping surprises.
package sanitize

import (
	"html"
	"strings"

	// bluemonday is an allow-list HTML sanitizer; StrictPolicy allows no tags at all.
	"github.com/microcosm-cc/bluemonday"
)

// maxPasses bounds how many layers of entity encoding Text will peel off.
// "&amp;lt;b&amp;gt;" needs three: two to decode the entities, one to strip the tag.
const maxPasses = 4

var ugcPolicy = bluemonday.StrictPolicy()

// Text removes every HTML tag from s and trims surrounding whitespace.
//
// bluemonday escapes the text it keeps ("&" becomes "&amp;"), and members expect to see
// the characters they typed, so the output is decoded back to plain text. Decoding can
// itself produce markup when the input was pre-escaped ("&lt;script&gt;"), so the
// strip and decode steps repeat until the text stops changing.
func Text(s string) string {
	for i := 0; i < maxPasses; i++ {
		// Strip tags, then turn entities back into the characters they stand for.
		clean := html.UnescapeString(ugcPolicy.Sanitize(s))
		if clean == s {
			// Nothing left to strip or decode: s is plain text.
			return strings.TrimSpace(s)
		}
		s = clean
	}
	// Still changing after maxPasses: give up on decoding and store the escaped form,
	// which can never render as markup.
	return strings.TrimSpace(ugcPolicy.Sanitize(s))
}

// Optional is Text for nullable columns. Blank results become nil.
func Optional(s *string) *string {
	if s == nil {
		return nil
	}
	clean := Text(*s)
	if clean == "" {
		// An all-markup or all-whitespace value is treated as "not provided".
		return nil
	}
	return &clean
}
