package normalize

import (
	"regexp"
	"strings"
)

// Patterns applied by Clean, in order. Line-anchored ones run in multiline
// mode so headings and list markers are only stripped at line starts.
var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	mdLinkPattern     = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	headingPattern    = regexp.MustCompile(`(?m)^#{1,6}[ \t]*`)
	horizRulePattern  = regexp.MustCompile(`(?m)^[ \t]*(?:-{3,}|\*{3,}|_{3,})[ \t]*$`)
	bulletPattern     = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|\d+\.)[ \t]+`)
	emphasisPattern   = regexp.MustCompile(`\*{1,3}|_{2,3}|~~`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Clean strips markdown and HTML markup from upstream free-text fields so
// downstream consumers receive plain prose. Tags are removed but their inner
// text kept, links are replaced by their link text, heading markers,
// horizontal rules and list bullets are dropped, emphasis markers are
// removed, and all whitespace runs collapse to a single space.
//
// Single underscores survive so identifiers like snake_case names are not
// mangled.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = mdLinkPattern.ReplaceAllString(s, "$1")
	s = headingPattern.ReplaceAllString(s, "")
	s = horizRulePattern.ReplaceAllString(s, "")
	s = bulletPattern.ReplaceAllString(s, "")
	s = emphasisPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
