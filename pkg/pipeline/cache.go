package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/graphscribe/backend/pkg/logger"
	"github.com/graphscribe/backend/pkg/model"
)

func (p *Pipeline) chunkCachePath(documentID string) string {
	return filepath.Join(p.cacheDir, documentID+".chunks.json")
}

func (p *Pipeline) extractionCachePath(documentID string) string {
	return filepath.Join(p.cacheDir, documentID+".extractions.json")
}

// loadChunkCache returns previously computed chunks for the document.
// A missing, unreadable, or corrupt cache file is a cache miss, never an
// error.
func (p *Pipeline) loadChunkCache(documentID string) ([]model.Chunk, bool) {
	data, err := os.ReadFile(p.chunkCachePath(documentID))
	if err != nil {
		return nil, false
	}

	var chunks []model.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		logger.Warn("[Pipeline] Ignoring corrupt chunk cache", "document_id", documentID, "err", err)
		return nil, false
	}
	if len(chunks) == 0 {
		return nil, false
	}

	return chunks, true
}

func (p *Pipeline) writeChunkCache(documentID string, chunks []model.Chunk) error {
	if err := os.MkdirAll(p.cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	data, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk cache: %w", err)
	}

	if err := os.WriteFile(p.chunkCachePath(documentID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write chunk cache: %w", err)
	}

	return nil
}

// loadExtractionCache returns cached per-chunk extraction results keyed
// by chunk id. Corrupt caches are ignored.
func (p *Pipeline) loadExtractionCache(documentID string) map[string]model.ChunkExtraction {
	cached := make(map[string]model.ChunkExtraction)

	data, err := os.ReadFile(p.extractionCachePath(documentID))
	if err != nil {
		return cached
	}

	var extractions []model.ChunkExtraction
	if err := json.Unmarshal(data, &extractions); err != nil {
		logger.Warn("[Pipeline] Ignoring corrupt extraction cache", "document_id", documentID, "err", err)
		return cached
	}

	for _, extraction := range extractions {
		cached[extraction.ChunkID] = extraction
	}

	return cached
}

// cacheWriter serializes extraction cache writes for one document: a
// single goroutine drains the queue, so writes never interleave and each
// write starts only after the previous one finished. A crash mid-batch
// loses at most the writes still in flight.
type cacheWriter struct {
	path  string
	queue chan []byte
	done  chan struct{}
}

func newCacheWriter(path string, capacity int) *cacheWriter {
	if capacity < 1 {
		capacity = 1
	}
	w := &cacheWriter{
		path:  path,
		queue: make(chan []byte, capacity),
		done:  make(chan struct{}),
	}

	go func() {
		defer close(w.done)
		for data := range w.queue {
			if err := os.WriteFile(w.path, data, 0o644); err != nil {
				logger.Warn("[Pipeline] Extraction cache write failed", "path", w.path, "err", err)
			}
		}
	}()

	return w
}

// enqueue hands a snapshot to the writer. Snapshots are written strictly
// in submission order.
func (w *cacheWriter) enqueue(data []byte) {
	w.queue <- data
}

// close drains the queue and waits for the last write to finish.
func (w *cacheWriter) close() {
	close(w.queue)
	<-w.done
}
