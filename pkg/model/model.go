package model

import "time"

// DocumentStatus tracks a document through its ingestion lifecycle.
// Completed and StatusError are terminal.
type DocumentStatus string

const (
	StatusUploading  DocumentStatus = "uploading"
	StatusParsing    DocumentStatus = "parsing"
	StatusExtracting DocumentStatus = "extracting"
	StatusEmbedding  DocumentStatus = "embedding"
	StatusCompleted  DocumentStatus = "completed"
	StatusError      DocumentStatus = "error"
)

// FileType identifies the format adapter used to parse an uploaded document.
type FileType string

const (
	FileTypePDF      FileType = "pdf"
	FileTypeMarkdown FileType = "markdown"
	FileTypeText     FileType = "text"
)

// Document represents one uploaded file moving through the ingestion
// pipeline. It is created on upload and mutated at each phase boundary.
type Document struct {
	ID           string           `json:"id"`
	Filename     string           `json:"filename"`
	FileType     FileType         `json:"file_type"`
	Size         int64            `json:"size"`
	Status       DocumentStatus   `json:"status"`
	UploadedAt   time.Time        `json:"uploaded_at"`
	ParsedAt     *time.Time       `json:"parsed_at,omitempty"`
	Metadata     DocumentMetadata `json:"metadata"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// DocumentMetadata holds counts gathered during processing.
type DocumentMetadata struct {
	Pages    int `json:"pages,omitempty"`
	Words    int `json:"words,omitempty"`
	Chunks   int `json:"chunks,omitempty"`
	Entities int `json:"entities,omitempty"`
	Edges    int `json:"edges,omitempty"`
}

// Chunk represents a contiguous segment of a document's text. Chunks are
// the smallest building blocks in the graph and serve as the provenance
// for entities and relations.
//
// Index is zero-based and contiguous per document; later stages rely on
// chunk order for stable citation and caching. A chunk is immutable after
// splitting except for embedding attachment.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	Index      int       `json:"index"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Page       int       `json:"page,omitempty"`
	Line       int       `json:"line,omitempty"`
}

// ExtractedEntity is a single entity mention produced by one extraction
// call. Mentions are ephemeral: the same real-world entity may appear many
// times across chunks under different names and confidences.
type ExtractedEntity struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// ExtractedRelation is a single relation mention between two entity names
// within one chunk.
type ExtractedRelation struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// ChunkExtraction is the batch of mentions extracted from one chunk.
type ChunkExtraction struct {
	ChunkID    string              `json:"chunk_id"`
	ChunkIndex int                 `json:"chunk_index"`
	Entities   []ExtractedEntity   `json:"entities"`
	Relations  []ExtractedRelation `json:"relations"`
}

// GraphNode is a canonical entity after resolution, ready for persistence.
type GraphNode struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Type            string         `json:"type"`
	Description     string         `json:"description"`
	Confidence      float64        `json:"confidence"`
	Properties      map[string]any `json:"properties,omitempty"`
	SourceDocuments []string       `json:"source_documents"`
	SourceChunks    []string       `json:"source_chunks"`
	Aliases         []string       `json:"aliases"`
	Embedding       []float32      `json:"embedding,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// GraphEdge is a directional edge between two resolved nodes. Edge identity
// for deduplication is the (SourceID, TargetID, Type) triple; repeated
// mentions of the same triple accumulate into one edge.
type GraphEdge struct {
	ID              string         `json:"id"`
	SourceID        string         `json:"source_id"`
	TargetID        string         `json:"target_id"`
	Type            string         `json:"type"`
	Description     string         `json:"description"`
	Properties      map[string]any `json:"properties,omitempty"`
	Weight          float64        `json:"weight"`
	SourceDocuments []string       `json:"source_documents"`
	Confidence      float64        `json:"confidence"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ResolvedGraph is the final deduplicated node/edge set produced by one
// resolution run. Every edge's endpoints exist in Nodes; self-loops are
// never produced.
type ResolvedGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Phase tags a pipeline status event with the stage that emitted it.
type Phase string

const (
	PhaseParsing    Phase = "parsing"
	PhaseChunking   Phase = "chunking"
	PhaseExtracting Phase = "extracting"
	PhaseResolving  Phase = "resolving"
	PhaseEmbedding  Phase = "embedding"
	PhaseSaving     Phase = "saving"
	PhaseCompleted  Phase = "completed"
	PhaseError      Phase = "error"
)

// Progress returns the fixed progress percentage reported when the phase
// begins.
func (p Phase) Progress() int {
	switch p {
	case PhaseParsing:
		return 0
	case PhaseChunking:
		return 20
	case PhaseExtracting:
		return 30
	case PhaseResolving:
		return 70
	case PhaseEmbedding:
		return 80
	case PhaseSaving:
		return 90
	default:
		return 100
	}
}

// StatusEvent is a fire-and-forget progress notification. Delivery is
// synchronous and in-process; there is no acknowledgment or backpressure.
type StatusEvent struct {
	DocumentID string `json:"document_id"`
	Phase      Phase  `json:"phase"`
	Progress   int    `json:"progress"`
	Message    string `json:"message,omitempty"`
}
