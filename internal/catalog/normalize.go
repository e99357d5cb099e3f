package catalog

import (
	"regexp"
	"strings"
)

var (
	fullLinkPattern = regexp.MustCompile(`(?i)https?://t\.me/\w+`)
	bareLinkPattern = regexp.MustCompile(`(?i)\bt\.me/\w+`)
	mentionPattern  = regexp.MustCompile(`@\w+`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

// Normalize strips channel-promotion noise from a title taken off a channel
// post: full t.me URLs, bare t.me links, @mentions, then collapses runs of
// whitespace. Pure and deterministic; the output is the catalog identity.
// Full URLs go first so a bare-link pass never leaves an orphaned scheme.
func Normalize(raw string) string {
	out := fullLinkPattern.ReplaceAllString(raw, "")
	out = bareLinkPattern.ReplaceAllString(out, "")
	out = mentionPattern.ReplaceAllString(out, "")
	out = spacePattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
