package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/graphscribe/backend/pkg/ai"
	"github.com/graphscribe/backend/pkg/dispatch"
	"github.com/graphscribe/backend/pkg/loader"
	"github.com/graphscribe/backend/pkg/logger"
	"github.com/graphscribe/backend/pkg/model"
	"github.com/graphscribe/backend/pkg/resolve"
	"github.com/graphscribe/backend/pkg/splitter"
	"github.com/graphscribe/backend/pkg/store"

	"golang.org/x/sync/errgroup"
)

// SizeLimitError is raised before any extraction call when a document
// exceeds the configured chunk or token ceilings.
type SizeLimitError struct {
	Chunks    int
	MaxChunks int
	Tokens    int
	MaxTokens int
}

func (e *SizeLimitError) Error() string {
	if e.MaxChunks > 0 && e.Chunks > e.MaxChunks {
		return fmt.Sprintf("document splits into %d chunks, exceeding the limit of %d", e.Chunks, e.MaxChunks)
	}
	return fmt.Sprintf("document is estimated at %d tokens, exceeding the limit of %d", e.Tokens, e.MaxTokens)
}

// Pipeline drives one document through parse, chunk, extract, resolve,
// embed, and save. Phases run strictly sequentially per document; within
// the extraction and embedding phases, worker pools of configurable width
// fan out over chunks and nodes. A Pipeline holds no mutable state shared
// between documents beyond its configuration, so separate documents may
// be processed concurrently.
//
// A Pipeline should be created using NewPipeline.
type Pipeline struct {
	splitter   *splitter.Splitter
	resolver   *resolve.Resolver
	parsers    *loader.Registry
	extractor  ai.Extractor
	embedder   ai.Embedder
	storage    store.GraphStorage
	dispatcher *dispatch.Dispatcher

	cacheDir       string
	maxChunks      int
	maxTokens      int
	estimateTokens ai.TokenEstimator
	extractWorkers int
	embedWorkers   int

	listenerMu sync.Mutex
	listeners  []StatusListener
}

// NewPipelineParams defines the configuration parameters for creating a
// new Pipeline.
//
// CacheDir is the directory holding the per-document chunk and extraction
// cache files. MaxChunks and MaxTokens are the size-guard ceilings; zero
// disables the corresponding guard. TokenEstimator is optional and
// defaults to a character heuristic. ExtractWorkers and EmbedWorkers
// control the two independent worker-pool widths.
type NewPipelineParams struct {
	Splitter   *splitter.Splitter
	Parsers    *loader.Registry
	Extractor  ai.Extractor
	Embedder   ai.Embedder
	Storage    store.GraphStorage
	Dispatcher *dispatch.Dispatcher

	CacheDir       string
	MaxChunks      int
	MaxTokens      int
	TokenEstimator ai.TokenEstimator
	ExtractWorkers int
	EmbedWorkers   int
}

// NewPipeline creates and returns a new Pipeline configured with the
// provided parameters.
func NewPipeline(params NewPipelineParams) *Pipeline {
	extractWorkers := params.ExtractWorkers
	if extractWorkers <= 0 {
		extractWorkers = 4
	}
	embedWorkers := params.EmbedWorkers
	if embedWorkers <= 0 {
		embedWorkers = 4
	}

	estimate := params.TokenEstimator
	if estimate == nil {
		estimate = func(text string) int {
			return (len(text) + 3) / 4
		}
	}

	return &Pipeline{
		splitter:       params.Splitter,
		resolver:       resolve.NewResolver(),
		parsers:        params.Parsers,
		extractor:      params.Extractor,
		embedder:       params.Embedder,
		storage:        params.Storage,
		dispatcher:     params.Dispatcher,
		cacheDir:       params.CacheDir,
		maxChunks:      params.MaxChunks,
		maxTokens:      params.MaxTokens,
		estimateTokens: estimate,
		extractWorkers: extractWorkers,
		embedWorkers:   embedWorkers,
	}
}

// ProcessOptions carries per-call overrides for Process.
//
// RawText skips the parsing phase and uses the given text directly.
// ForceRebuild discards cached chunks and extractions for the document.
type ProcessOptions struct {
	RawText      string
	ForceRebuild bool
}

// ProcessResult is the outcome of one successful Process call.
type ProcessResult struct {
	Document        *model.Document
	Chunks          []model.Chunk
	Graph           *model.ResolvedGraph
	EstimatedTokens int
}

// Process runs the document through every phase and hands the results to
// the storage collaborator. Any phase error aborts the remaining phases,
// marks the in-memory document as failed, emits an error status event,
// and is returned to the caller.
func (p *Pipeline) Process(
	ctx context.Context,
	document *model.Document,
	fileBytes []byte,
	opts *ProcessOptions,
) (result *ProcessResult, err error) {
	if opts == nil {
		opts = &ProcessOptions{}
	}

	defer func() {
		if err == nil {
			return
		}
		document.Status = model.StatusError
		document.ErrorMessage = err.Error()
		p.emit(document.ID, model.PhaseError, err.Error())
	}()

	logger.Info("[Pipeline] Processing document", "document_id", document.ID, "filename", document.Filename)

	text, err := p.runParsing(ctx, document, fileBytes, opts)
	if err != nil {
		return nil, err
	}

	chunks, estimatedTokens, err := p.runChunking(document, text, opts)
	if err != nil {
		return nil, err
	}

	extractions, err := p.runExtraction(ctx, document, chunks, opts)
	if err != nil {
		return nil, err
	}

	p.emit(document.ID, model.PhaseResolving, "")
	graph, err := p.resolver.Resolve(document.ID, extractions)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve entities: %w", err)
	}

	if err := p.runEmbedding(ctx, document, graph, chunks); err != nil {
		return nil, err
	}

	if err := p.runSaving(ctx, document, chunks, graph); err != nil {
		return nil, err
	}

	p.emit(document.ID, model.PhaseCompleted, "")
	logger.Info("[Pipeline] Document completed",
		"document_id", document.ID,
		"chunks", len(chunks),
		"nodes", len(graph.Nodes),
		"edges", len(graph.Edges),
	)

	return &ProcessResult{
		Document:        document,
		Chunks:          chunks,
		Graph:           graph,
		EstimatedTokens: estimatedTokens,
	}, nil
}

func (p *Pipeline) runParsing(
	ctx context.Context,
	document *model.Document,
	fileBytes []byte,
	opts *ProcessOptions,
) (string, error) {
	p.emit(document.ID, model.PhaseParsing, "")
	document.Status = model.StatusParsing

	if strings.TrimSpace(opts.RawText) != "" {
		return opts.RawText, nil
	}

	text, err := p.parsers.Parse(ctx, document.FileType, fileBytes)
	if err != nil {
		return "", err
	}

	return text, nil
}

func (p *Pipeline) runChunking(
	document *model.Document,
	text string,
	opts *ProcessOptions,
) ([]model.Chunk, int, error) {
	p.emit(document.ID, model.PhaseChunking, "")

	var chunks []model.Chunk
	rebuild := opts.ForceRebuild || strings.TrimSpace(opts.RawText) != ""
	if !rebuild {
		if cached, ok := p.loadChunkCache(document.ID); ok {
			chunks = cached
		}
	}

	if chunks == nil {
		split, err := p.splitter.Split(text, document.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to split document: %w", err)
		}
		chunks = split

		if err := p.writeChunkCache(document.ID, chunks); err != nil {
			return nil, 0, err
		}
	}

	estimatedTokens := 0
	for _, chunk := range chunks {
		estimatedTokens += p.estimateTokens(chunk.Content)
	}

	if p.maxChunks > 0 && len(chunks) > p.maxChunks {
		return nil, 0, &SizeLimitError{Chunks: len(chunks), MaxChunks: p.maxChunks}
	}
	if p.maxTokens > 0 && estimatedTokens > p.maxTokens {
		return nil, 0, &SizeLimitError{Tokens: estimatedTokens, MaxTokens: p.maxTokens}
	}

	return chunks, estimatedTokens, nil
}

func (p *Pipeline) runExtraction(
	ctx context.Context,
	document *model.Document,
	chunks []model.Chunk,
	opts *ProcessOptions,
) ([]model.ChunkExtraction, error) {
	p.emit(document.ID, model.PhaseExtracting, "")
	document.Status = model.StatusExtracting

	indexByChunkID := make(map[string]int, len(chunks))
	for _, chunk := range chunks {
		indexByChunkID[chunk.ID] = chunk.Index
	}

	results := make(map[string]model.ChunkExtraction)
	if !opts.ForceRebuild {
		for chunkID, extraction := range p.loadExtractionCache(document.ID) {
			// Stale entries from an earlier chunking are useless.
			if _, ok := indexByChunkID[chunkID]; ok {
				results[chunkID] = extraction
			}
		}
	}

	pending := make([]model.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if _, ok := results[chunk.ID]; !ok {
			pending = append(pending, chunk)
		}
	}

	logger.Debug("[Pipeline] Extracting",
		"document_id", document.ID,
		"chunks", len(chunks),
		"cached", len(results),
		"pending", len(pending),
	)

	if len(pending) > 0 {
		writer := newCacheWriter(p.extractionCachePath(document.ID), len(pending))
		defer writer.close()

		mu := sync.Mutex{}
		eg, gCtx := errgroup.WithContext(ctx)
		eg.SetLimit(p.extractWorkers)

		for _, chunk := range pending {
			c := chunk
			eg.Go(func() error {
				extraction, _, err := dispatch.Do(gCtx, p.dispatcher, func(ctx context.Context) (*ai.ExtractionResult, error) {
					return p.extractor.Extract(ctx, c.Content)
				})
				if err != nil {
					return fmt.Errorf("failed to extract chunk %d: %w", c.Index, err)
				}

				mu.Lock()
				defer mu.Unlock()

				results[c.ID] = model.ChunkExtraction{
					ChunkID:    c.ID,
					ChunkIndex: c.Index,
					Entities:   extraction.Entities,
					Relations:  extraction.Relations,
				}

				snapshot := sortedExtractions(results)
				data, err := json.Marshal(snapshot)
				if err != nil {
					return fmt.Errorf("failed to marshal extraction cache: %w", err)
				}
				writer.enqueue(data)

				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	return sortedExtractions(results), nil
}

func (p *Pipeline) runEmbedding(
	ctx context.Context,
	document *model.Document,
	graph *model.ResolvedGraph,
	chunks []model.Chunk,
) error {
	p.emit(document.ID, model.PhaseEmbedding, "")
	document.Status = model.StatusEmbedding

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.embedWorkers)

	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		eg.Go(func() error {
			input := node.Name
			if node.Description != "" {
				input = node.Name + ": " + node.Description
			}
			embedding, _, err := dispatch.Do(gCtx, p.dispatcher, func(ctx context.Context) ([]float32, error) {
				return p.embedder.Embed(ctx, input)
			})
			if err != nil {
				return fmt.Errorf("failed to embed node %q: %w", node.Name, err)
			}
			node.Embedding = embedding
			return nil
		})
	}

	for i := range chunks {
		chunk := &chunks[i]
		eg.Go(func() error {
			embedding, _, err := dispatch.Do(gCtx, p.dispatcher, func(ctx context.Context) ([]float32, error) {
				return p.embedder.Embed(ctx, chunk.Content)
			})
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d: %w", chunk.Index, err)
			}
			chunk.Embedding = embedding
			return nil
		})
	}

	return eg.Wait()
}

func (p *Pipeline) runSaving(
	ctx context.Context,
	document *model.Document,
	chunks []model.Chunk,
	graph *model.ResolvedGraph,
) error {
	p.emit(document.ID, model.PhaseSaving, "")

	now := time.Now().UTC()
	document.ParsedAt = &now
	document.Metadata.Chunks = len(chunks)
	document.Metadata.Entities = len(graph.Nodes)
	document.Metadata.Edges = len(graph.Edges)
	document.Status = model.StatusCompleted
	document.ErrorMessage = ""

	if err := p.storage.SaveDocument(ctx, document); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	if err := p.storage.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("failed to save chunks: %w", err)
	}
	if err := p.storage.SaveNodes(ctx, graph.Nodes); err != nil {
		return fmt.Errorf("failed to save nodes: %w", err)
	}
	if err := p.storage.SaveEdges(ctx, graph.Edges); err != nil {
		return fmt.Errorf("failed to save edges: %w", err)
	}

	for _, node := range graph.Nodes {
		if len(node.Embedding) == 0 {
			continue
		}
		if err := p.storage.SaveNodeEmbedding(ctx, node.ID, node.Embedding); err != nil {
			return fmt.Errorf("failed to save node embedding: %w", err)
		}
	}

	return nil
}

func sortedExtractions(results map[string]model.ChunkExtraction) []model.ChunkExtraction {
	extractions := make([]model.ChunkExtraction, 0, len(results))
	for _, extraction := range results {
		extractions = append(extractions, extraction)
	}
	sort.Slice(extractions, func(i, j int) bool {
		return extractions[i].ChunkIndex < extractions[j].ChunkIndex
	})
	return extractions
}
