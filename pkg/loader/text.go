package loader

import (
	"context"
	"strings"
)

// TextParser handles plain-text uploads. It only sanitizes the input
// into valid UTF-8.
type TextParser struct{}

func (p *TextParser) Parse(ctx context.Context, data []byte) (string, error) {
	text := strings.ToValidUTF8(string(data), "")
	text = strings.ReplaceAll(text, "\x00", "")
	return text, nil
}
