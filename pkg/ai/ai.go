package ai

import (
	"context"

	"github.com/graphscribe/backend/pkg/model"
)

// ExtractionResult is the entity/relation batch returned by one
// extraction call over one chunk's text.
type ExtractionResult struct {
	Entities  []model.ExtractedEntity
	Relations []model.ExtractedRelation
}

// Extractor is the external capability that pulls candidate entities and
// relations out of a piece of text. Failures must be classifiable: rate
// limits should surface as dispatch.RateLimitError so the dispatcher can
// retry them.
type Extractor interface {
	Extract(ctx context.Context, text string) (*ExtractionResult, error)
}

// Embedder is the external capability that turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// TokenEstimator estimates the token count of a piece of text. The
// pipeline uses it for its size guard; a nil estimator falls back to a
// character heuristic.
type TokenEstimator func(text string) int
