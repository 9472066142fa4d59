// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/graphrag/ai"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

// ReembedProcessor names the re-embed job's checkpoint.
const ReembedProcessor = "reembed"

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of chunks to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder recomputes the embedding of every stored chunk.
type Reembedder struct {
	chunks      storage.ChunkRepository
	checkpoints storage.CheckpointRepository
	index       ChunkIndex
	embedder    ai.Embedder
	config      *Config
	progress    io.Writer
	iterator    *ChunkIterator
	logger      *slog.Logger
}

// NewReembedder creates a new reembedder. Chunks are read from chunks and
// written back through index so the in-memory search structures follow.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(
	chunks storage.ChunkRepository,
	checkpoints storage.CheckpointRepository,
	index ChunkIndex,
	embedder ai.Embedder,
	config *Config,
	progress io.Writer,
) (*Reembedder, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if checkpoints == nil {
		return nil, ErrCheckpointRepositoryRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		chunks:      chunks,
		checkpoints: checkpoints,
		index:       index,
		embedder:    embedder,
		config:      config,
		progress:    progress,
		iterator:    NewChunkIterator(chunks, config.BatchSize),
		logger:      slog.Default().With("component", "reembedder"),
	}, nil
}

// Run re-embeds all chunks, resuming after the last checkpointed batch of
// an interrupted run. The checkpoint is removed once every chunk is done.
func (r *Reembedder) Run(ctx context.Context) error {
	total, err := r.chunks.CountChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found in database (0 chunks)\n")
		return nil
	}

	checkpoint, err := r.checkpoints.LoadCheckpoint(ctx, ReembedProcessor)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	var after uint64
	if checkpoint != nil {
		after = checkpoint.LastOrdinal
		fmt.Fprintf(r.progress, "Resuming reembedding after chunk #%d\n", after)
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d chunks (batch size: %d)\n", total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, after, func(batch []*core.Chunk) error {
		if err := r.process(ctx, batch); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}

		last := batch[len(batch)-1].Ordinal
		if err := r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
			ProcessorType: ReembedProcessor,
			LastOrdinal:   last,
		}); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}

		processed += len(batch)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		r.logger.Error("reembedding stopped", "processed", processed, "err", err)
		return err
	}

	if err := r.checkpoints.DeleteCheckpoint(ctx, ReembedProcessor); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())

	return nil
}

// process embeds a batch with retry and writes it back through the index.
func (r *Reembedder) process(ctx context.Context, batch []*core.Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Content
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = r.embedder.EmbedTexts(ctx, texts)
		return err
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return core.Unavailable(core.ErrEmbeddingUnavailable,
			fmt.Errorf("failed to generate embeddings after %d attempts: %w", r.config.MaxRetries, err))
	}

	if len(embeddings) != len(batch) {
		return fmt.Errorf("%w: embedding count mismatch: expected %d, got %d",
			core.ErrEmbeddingUnavailable, len(batch), len(embeddings))
	}

	for i := range batch {
		batch[i].Embedding = embeddings[i]
	}

	_, err = r.index.Add(ctx, batch...)
	return err
}
