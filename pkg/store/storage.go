package store

import (
	"context"

	"github.com/graphscribe/backend/pkg/model"
)

// GraphStorage is the persistence collaborator the pipeline hands its
// results to. All calls are fire-and-forget from the pipeline's
// perspective: errors propagate up as pipeline failures, and delivery is
// at-least-once, so implementations should upsert by id.
type GraphStorage interface {
	SaveDocument(ctx context.Context, document *model.Document) error
	SaveChunks(ctx context.Context, chunks []model.Chunk) error
	SaveNodes(ctx context.Context, nodes []model.GraphNode) error
	SaveEdges(ctx context.Context, edges []model.GraphEdge) error
	SaveNodeEmbedding(ctx context.Context, nodeID string, embedding []float32) error
}
