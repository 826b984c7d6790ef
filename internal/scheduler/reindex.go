// Package scheduler runs periodic DMA maintenance jobs.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/NNNvD/DMA/internal/embedding"
	"github.com/NNNvD/DMA/internal/store"
	"github.com/google/uuid"
)

const defaultBatchSize = 100

// Reindexer regenerates missing retrieval vectors for stored documents.
type Reindexer struct {
	repo      store.Repository
	embedder  *embedding.Service
	batchSize int
}

// NewReindexer creates a Reindexer. batchSize <= 0 uses the default.
func NewReindexer(repo store.Repository, embedder *embedding.Service, batchSize int) *Reindexer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Reindexer{repo: repo, embedder: embedder, batchSize: batchSize}
}

// Run embeds one batch of documents that have no stored vector and persists
// the results. Returns the number of vectors written. Embedding failures
// degrade to skipped documents rather than failing the run.
func (r *Reindexer) Run(ctx context.Context) (int, error) {
	runID := uuid.NewString()

	if !r.embedder.Enabled() {
		slog.Info("Reindex skipped, embeddings disabled", "run_id", runID)
		return 0, nil
	}

	docs, err := r.repo.DocumentsMissingEmbedding(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	slog.Info("Reindex run started", "run_id", runID, "candidates", len(docs))

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = r.embedder.DocumentText(doc)
	}

	vectors := r.embedder.GenerateEmbeddingsBatch(ctx, texts)

	written := 0
	for i, vec := range vectors {
		if len(vec) == 0 {
			continue
		}
		if err := r.repo.SaveEmbedding(ctx, docs[i].ID, vec); err != nil {
			slog.Error("Reindex failed to save embedding",
				"run_id", runID,
				"document_id", docs[i].ID,
				"error", err)
			continue
		}
		written++
	}

	slog.Info("Reindex run complete", "run_id", runID, "written", written)
	return written, nil
}

// StartReindexWorker runs a background goroutine that periodically refreshes
// missing embeddings. A zero interval disables the worker.
func StartReindexWorker(ctx context.Context, reindexer *Reindexer, interval time.Duration) {
	if interval <= 0 {
		slog.Info("Reindex worker disabled")
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Reindex worker started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				if _, err := reindexer.Run(ctx); err != nil {
					slog.Error("Reindex worker run failed", "error", err)
				}
			case <-ctx.Done():
				slog.Info("Reindex worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
