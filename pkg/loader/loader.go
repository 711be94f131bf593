package loader

import (
	"context"
	"fmt"

	"github.com/graphscribe/backend/pkg/model"
)

// Parser extracts plain text from one document format.
type Parser interface {
	Parse(ctx context.Context, data []byte) (string, error)
}

// Registry dispatches uploaded bytes to the format parser registered for
// their file type.
type Registry struct {
	parsers map[model.FileType]Parser
}

// NewRegistry creates a Registry with the built-in parsers for plain
// text, Markdown, and PDF.
func NewRegistry() *Registry {
	return &Registry{
		parsers: map[model.FileType]Parser{
			model.FileTypeText:     &TextParser{},
			model.FileTypeMarkdown: &MarkdownParser{},
			model.FileTypePDF:      &PDFParser{},
		},
	}
}

// Register adds or replaces the parser for a file type.
func (r *Registry) Register(fileType model.FileType, parser Parser) {
	r.parsers[fileType] = parser
}

// Parse extracts text from the uploaded bytes using the parser
// registered for the file type. An unknown file type is a parse error.
func (r *Registry) Parse(ctx context.Context, fileType model.FileType, data []byte) (string, error) {
	parser, ok := r.parsers[fileType]
	if !ok {
		return "", fmt.Errorf("no parser registered for file type %q", fileType)
	}

	text, err := parser.Parse(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s document: %w", fileType, err)
	}

	return text, nil
}
