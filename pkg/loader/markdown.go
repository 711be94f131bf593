package loader

import (
	"context"
	"regexp"
	"strings"
)

var (
	reCodeFence  = regexp.MustCompile("(?s)```.*?```")
	reInlineCode = regexp.MustCompile("`([^`]*)`")
	reImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	reHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reEmphasis   = regexp.MustCompile(`(\*{1,3}|_{1,3})([^*_]+)(\*{1,3}|_{1,3})`)
)

// MarkdownParser strips Markdown syntax down to its readable text so the
// splitter and extractor see prose, not markup. Tables are left intact
// since their cell contents carry information.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(ctx context.Context, data []byte) (string, error) {
	text := strings.ToValidUTF8(string(data), "")
	text = strings.ReplaceAll(text, "\x00", "")

	text = reCodeFence.ReplaceAllString(text, "")
	text = reImage.ReplaceAllString(text, "$1")
	text = reLink.ReplaceAllString(text, "$1")
	text = reInlineCode.ReplaceAllString(text, "$1")
	text = reHeading.ReplaceAllString(text, "")
	text = reEmphasis.ReplaceAllString(text, "$2")

	return text, nil
}
