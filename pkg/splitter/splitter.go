package splitter

import (
	"fmt"

	"github.com/graphscribe/backend/pkg/model"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Splitter splits raw document text into an ordered sequence of
// overlapping chunks. Splitting is deterministic: the same text and
// parameters always produce the same chunk boundaries.
//
// A Splitter should be created using NewSplitter.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter creates a Splitter with the given target chunk size and
// overlap, both measured in characters. A size <= 0 is a configuration
// error and panics. An overlap >= size is clamped to size-1 so the
// window always advances.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		panic(fmt.Sprintf("splitter: chunk size must be positive, got %d", size))
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Splitter{
		size:    size,
		overlap: overlap,
	}
}

// Split produces the ordered chunk sequence for one document. Each chunk
// except possibly the last has length equal to the target size, and each
// chunk after the first repeats the trailing overlap of its predecessor.
// Chunk indexes are zero-based and contiguous.
func (s *Splitter) Split(text string, documentID string) ([]model.Chunk, error) {
	runes := []rune(text)

	chunks := make([]model.Chunk, 0)
	step := s.size - s.overlap

	for start := 0; start == 0 || start < len(runes); start += step {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}

		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate chunk ID: %w", err)
		}

		chunks = append(chunks, model.Chunk{
			ID:         id,
			DocumentID: documentID,
			Content:    string(runes[start:end]),
			Index:      len(chunks),
		})

		if end >= len(runes) {
			break
		}
	}

	return chunks, nil
}
