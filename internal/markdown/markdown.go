// Package markdown converts assistant replies between the plain text
// used by the typewriter reveal and the rendered form shown afterwards.
package markdown

import (
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Strip rewrites Markdown into plain readable text for the reveal:
// structural markers go away, link and emphasis text stays. The output
// is cosmetic only; Render produces the authoritative form.
var (
	reFence        = regexp.MustCompile("(?s)```.*?```")
	reInlineCode   = regexp.MustCompile("`([^`]+)`")
	reBoldAster    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	reItalicAster  = regexp.MustCompile(`\*([^*]+)\*`)
	reBoldUnder    = regexp.MustCompile(`__([^_]+)__`)
	reItalicUnder  = regexp.MustCompile(`_([^_]+)_`)
	reImage        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	reLink         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	reBulletMarker = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	reHeading      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reTableRow     = regexp.MustCompile(`(?m)^\|.*\|$`)
	reHRule        = regexp.MustCompile(`(?m)^---+$`)
)

// Strip converts Markdown to plain text suitable for character-by-
// character reveal.
func Strip(md string) string {
	s := md
	s = reFence.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ReplaceAll(m, "```", "")
	})
	s = reInlineCode.ReplaceAllString(s, "$1")
	s = reBoldAster.ReplaceAllString(s, "$1")
	s = reItalicAster.ReplaceAllString(s, "$1")
	s = reBoldUnder.ReplaceAllString(s, "$1")
	s = reItalicUnder.ReplaceAllString(s, "$1")
	s = reImage.ReplaceAllString(s, "")
	s = reLink.ReplaceAllString(s, "$1")
	s = reBulletMarker.ReplaceAllString(s, "• ")
	s = reHeading.ReplaceAllString(s, "")
	s = reTableRow.ReplaceAllStringFunc(s, func(m string) string {
		return strings.TrimSpace(strings.ReplaceAll(m, "|", " "))
	})
	s = reHRule.ReplaceAllString(s, "—")
	return strings.TrimSpace(s)
}

var (
	rendererOnce sync.Once
	renderer     *glamour.TermRenderer
)

// Render renders Markdown for the terminal. Falls back to the input
// text when the renderer cannot be built or fails.
func Render(md string) string {
	rendererOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err == nil {
			renderer = r
		}
	})
	if renderer == nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
