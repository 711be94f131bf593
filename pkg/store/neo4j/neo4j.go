package neo4j

import (
	"context"
	"fmt"

	"github.com/graphscribe/backend/internal/util"
	"github.com/graphscribe/backend/pkg/model"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const writeRetries = 3

// GraphStore persists documents, chunks, and resolved graph data into
// neo4j. All writes are MERGE-based upserts keyed by id, so repeated
// saves of the same objects are idempotent.
//
// A GraphStore should be created using NewGraphStore.
type GraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewGraphStoreParams defines the configuration parameters for creating
// a new GraphStore.
type NewGraphStoreParams struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewGraphStore connects to neo4j and verifies connectivity.
func NewGraphStore(ctx context.Context, params NewGraphStoreParams) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(
		params.URI,
		neo4j.BasicAuth(params.Username, params.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	return &GraphStore{
		driver:   driver,
		database: params.Database,
	}, nil
}

// Close releases the underlying driver.
func (s *GraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *GraphStore) write(ctx context.Context, query string, params map[string]any) error {
	return util.RetryErrWithContext(ctx, writeRetries, func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{
			AccessMode:   neo4j.AccessModeWrite,
			DatabaseName: s.database,
		})
		defer session.Close(ctx)

		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			return res.Consume(ctx)
		})
		return err
	})
}

// SaveDocument upserts the document node with its current status and
// metadata.
func (s *GraphStore) SaveDocument(ctx context.Context, document *model.Document) error {
	return s.write(ctx, `
MERGE (d:Document {id: $id})
SET d.filename = $filename,
    d.file_type = $file_type,
    d.size = $size,
    d.status = $status,
    d.uploaded_at = $uploaded_at,
    d.parsed_at = $parsed_at,
    d.chunk_count = $chunk_count,
    d.entity_count = $entity_count,
    d.edge_count = $edge_count,
    d.error_message = $error_message
`, map[string]any{
		"id":            document.ID,
		"filename":      document.Filename,
		"file_type":     string(document.FileType),
		"size":          document.Size,
		"status":        string(document.Status),
		"uploaded_at":   document.UploadedAt.UTC(),
		"parsed_at":     document.ParsedAt,
		"chunk_count":   document.Metadata.Chunks,
		"entity_count":  document.Metadata.Entities,
		"edge_count":    document.Metadata.Edges,
		"error_message": document.ErrorMessage,
	})
}

// SaveChunks upserts every chunk and links it to its document.
func (s *GraphStore) SaveChunks(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(chunks))
	for _, chunk := range chunks {
		rows = append(rows, map[string]any{
			"id":          chunk.ID,
			"document_id": chunk.DocumentID,
			"content":     chunk.Content,
			"index":       chunk.Index,
			"embedding":   chunk.Embedding,
		})
	}

	return s.write(ctx, `
UNWIND $chunks AS chunk
MERGE (c:Chunk {id: chunk.id})
SET c.content = chunk.content,
    c.index = chunk.index,
    c.embedding = chunk.embedding
WITH c, chunk
MATCH (d:Document {id: chunk.document_id})
MERGE (d)-[:HAS_CHUNK]->(c)
`, map[string]any{"chunks": rows})
}

// SaveNodes upserts every resolved entity node.
func (s *GraphStore) SaveNodes(ctx context.Context, nodes []model.GraphNode) error {
	if len(nodes) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(nodes))
	for _, node := range nodes {
		rows = append(rows, map[string]any{
			"id":               node.ID,
			"name":             node.Name,
			"type":             node.Type,
			"description":      node.Description,
			"confidence":       node.Confidence,
			"source_documents": node.SourceDocuments,
			"source_chunks":    node.SourceChunks,
			"aliases":          node.Aliases,
			"created_at":       node.CreatedAt.UTC(),
			"updated_at":       node.UpdatedAt.UTC(),
		})
	}

	return s.write(ctx, `
UNWIND $nodes AS node
MERGE (e:Entity {id: node.id})
SET e.name = node.name,
    e.type = node.type,
    e.description = node.description,
    e.confidence = node.confidence,
    e.source_documents = node.source_documents,
    e.source_chunks = node.source_chunks,
    e.aliases = node.aliases,
    e.created_at = node.created_at,
    e.updated_at = node.updated_at
`, map[string]any{"nodes": rows})
}

// SaveEdges upserts every resolved edge between existing entity nodes.
func (s *GraphStore) SaveEdges(ctx context.Context, edges []model.GraphEdge) error {
	if len(edges) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(edges))
	for _, edge := range edges {
		rows = append(rows, map[string]any{
			"id":               edge.ID,
			"source_id":        edge.SourceID,
			"target_id":        edge.TargetID,
			"type":             edge.Type,
			"description":      edge.Description,
			"weight":           edge.Weight,
			"source_documents": edge.SourceDocuments,
			"confidence":       edge.Confidence,
			"created_at":       edge.CreatedAt.UTC(),
		})
	}

	return s.write(ctx, `
UNWIND $edges AS edge
MATCH (src:Entity {id: edge.source_id})
MATCH (tgt:Entity {id: edge.target_id})
MERGE (src)-[r:RELATES_TO {id: edge.id}]->(tgt)
SET r.type = edge.type,
    r.description = edge.description,
    r.weight = edge.weight,
    r.source_documents = edge.source_documents,
    r.confidence = edge.confidence,
    r.created_at = edge.created_at
`, map[string]any{"edges": rows})
}

// SaveNodeEmbedding attaches an embedding vector to an existing entity
// node.
func (s *GraphStore) SaveNodeEmbedding(ctx context.Context, nodeID string, embedding []float32) error {
	return s.write(ctx, `
MATCH (e:Entity {id: $id})
SET e.embedding = $embedding
`, map[string]any{
		"id":        nodeID,
		"embedding": embedding,
	})
}
