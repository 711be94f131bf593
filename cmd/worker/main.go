package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/graphscribe/backend/internal/util"
	"github.com/graphscribe/backend/pkg/ai"
	"github.com/graphscribe/backend/pkg/ai/openai"
	"github.com/graphscribe/backend/pkg/dispatch"
	"github.com/graphscribe/backend/pkg/loader"
	"github.com/graphscribe/backend/pkg/logger"
	"github.com/graphscribe/backend/pkg/logger/console"
	"github.com/graphscribe/backend/pkg/model"
	"github.com/graphscribe/backend/pkg/pipeline"
	"github.com/graphscribe/backend/pkg/splitter"
	"github.com/graphscribe/backend/pkg/store/neo4j"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	if len(os.Args) < 2 {
		logger.Fatal("Usage: worker <file> [<file> ...]")
	}

	// AI client
	aiClient := openai.NewClient(openai.NewClientParams{
		ExtractionModel: util.GetEnvString("AI_CHAT_EXTRACT_MODEL", "gpt-4o-mini"),
		EmbeddingModel:  util.GetEnvString("AI_EMBED_MODEL", "text-embedding-3-small"),

		ChatURL:      util.GetEnv("AI_CHAT_URL"),
		ChatKey:      util.GetEnv("AI_CHAT_KEY"),
		EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
		EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
	})

	estimator, err := ai.NewTiktokenEstimator(util.GetEnvString("TOKEN_ENCODING", "o200k_base"))
	if err != nil {
		logger.Fatal("Could not load token encoding", "err", err)
	}

	// Graph store
	graphStore, err := neo4j.NewGraphStore(ctx, neo4j.NewGraphStoreParams{
		URI:      util.GetEnvString("NEO4J_URI", "bolt://localhost:7687"),
		Username: util.GetEnvString("NEO4J_USER", "neo4j"),
		Password: util.GetEnv("NEO4J_PASSWORD"),
		Database: util.GetEnvString("NEO4J_DATABASE", "neo4j"),
	})
	if err != nil {
		logger.Fatal("Could not connect to neo4j", "err", err)
	}
	defer graphStore.Close(ctx)

	dispatcher := dispatch.NewDispatcher(dispatch.NewDispatcherParams{
		MaxConcurrent:     int(util.GetEnvNumeric("DISPATCH_MAX_CONCURRENT", 4)),
		Timeout:           time.Duration(util.GetEnvNumeric("DISPATCH_TIMEOUT_SECONDS", 60)) * time.Second,
		MaxRetries:        int(util.GetEnvNumeric("DISPATCH_MAX_RETRIES", 3)),
		BaseDelay:         time.Duration(util.GetEnvNumeric("DISPATCH_BASE_DELAY_MS", 1000)) * time.Millisecond,
		RequestsPerMinute: int(util.GetEnvNumeric("DISPATCH_RPM", 0)),
	})

	chunkSize := int(util.GetEnvNumeric("CHUNK_SIZE", 1200))
	chunkOverlap := int(util.GetEnvNumeric("CHUNK_OVERLAP", 200))

	pipe := pipeline.NewPipeline(pipeline.NewPipelineParams{
		Splitter:   splitter.NewSplitter(chunkSize, chunkOverlap),
		Parsers:    loader.NewRegistry(),
		Extractor:  aiClient,
		Embedder:   aiClient,
		Storage:    graphStore,
		Dispatcher: dispatcher,

		CacheDir:       util.GetEnvString("CACHE_DIR", ".cache"),
		MaxChunks:      int(util.GetEnvNumeric("MAX_CHUNKS", 0)),
		MaxTokens:      int(util.GetEnvNumeric("MAX_TOKENS", 0)),
		TokenEstimator: estimator,
		ExtractWorkers: int(util.GetEnvNumeric("EXTRACT_WORKERS", 4)),
		EmbedWorkers:   int(util.GetEnvNumeric("EMBED_WORKERS", 4)),
	})

	pipe.OnStatus(func(event model.StatusEvent) {
		logger.Info("Status",
			"document_id", event.DocumentID,
			"phase", event.Phase,
			"progress", event.Progress,
		)
	})

	forceRebuild := util.GetEnvBool("FORCE_REBUILD", false)

	for _, path := range os.Args[1:] {
		if ctx.Err() != nil {
			break
		}
		if err := processFile(ctx, pipe, path, forceRebuild); err != nil {
			logger.Error("Failed to process file", "path", path, "err", err)
		}
	}
}

func processFile(ctx context.Context, pipe *pipeline.Pipeline, path string, forceRebuild bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	id, err := gonanoid.New()
	if err != nil {
		return err
	}

	document := &model.Document{
		ID:         id,
		Filename:   filepath.Base(path),
		FileType:   fileTypeOf(path),
		Size:       int64(len(data)),
		Status:     model.StatusUploading,
		UploadedAt: time.Now().UTC(),
	}

	startTime := time.Now()
	result, err := pipe.Process(ctx, document, data, &pipeline.ProcessOptions{
		ForceRebuild: forceRebuild,
	})
	if err != nil {
		return err
	}

	logger.Info("Document processed",
		"document_id", document.ID,
		"chunks", len(result.Chunks),
		"nodes", len(result.Graph.Nodes),
		"edges", len(result.Graph.Edges),
		"estimated_tokens", result.EstimatedTokens,
		"duration", time.Since(startTime).Round(time.Millisecond),
	)
	return nil
}

func fileTypeOf(path string) model.FileType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return model.FileTypePDF
	case ".md", ".markdown":
		return model.FileTypeMarkdown
	default:
		return model.FileTypeText
	}
}
