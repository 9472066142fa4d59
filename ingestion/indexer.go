package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/graphrag/ai"
	"github.com/poiesic/graphrag/core"
)

// DefaultBatchSize is the number of chunks indexed per batch.
const DefaultBatchSize = 100

// ChunkIndex accepts chunks for semantic search.
type ChunkIndex interface {
	Add(ctx context.Context, chunks ...*core.Chunk) (int, error)
}

// GraphIndex accepts extracted entities and relationships.
type GraphIndex interface {
	AddEntities(ctx context.Context, entities ...core.Entity) (int, error)
	AddRelationships(ctx context.Context, rels ...core.Relationship) (int, error)
}

// Report summarizes an Index call.
type Report struct {
	Chunks        int
	Entities      int
	Relationships int

	// Failed lists chunks whose extraction failed. They are in the vector
	// index but contributed nothing to the graph.
	Failed []string
}

// Indexer loads chunks into both indexes.
type Indexer struct {
	vector     ChunkIndex
	graph      GraphIndex
	extractor  ai.EntityExtractor
	pool       *ants.Pool
	batchSize  int
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer) error

// WithPoolSize sets the extraction worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(ix *Indexer) error {
		pool, err := ants.NewPool(max(size, 1))
		if err != nil {
			return err
		}
		if ix.pool != nil {
			ix.pool.Release()
		}
		ix.pool = pool
		return nil
	}
}

// WithBatchSize sets how many chunks are indexed per batch.
func WithBatchSize(n int) Option {
	return func(ix *Indexer) error {
		if n < 1 {
			return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidOption, n)
		}
		ix.batchSize = n
		return nil
	}
}

// WithRetry sets how often a failed extraction is attempted and the base
// backoff delay between attempts.
func WithRetry(maxAttempts int, delay time.Duration) Option {
	return func(ix *Indexer) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		ix.maxRetries = maxAttempts
		ix.retryDelay = max(delay, 0)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger.With("component", "indexer")
		return nil
	}
}

// NewIndexer creates an Indexer. Call Release when done with it.
func NewIndexer(vector ChunkIndex, graph GraphIndex, extractor ai.EntityExtractor, opts ...Option) (*Indexer, error) {
	if vector == nil {
		return nil, ErrVectorIndexRequired
	}
	if graph == nil {
		return nil, ErrGraphIndexRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}

	pool, err := ants.NewPool(max(runtime.NumCPU()/2, 1))
	if err != nil {
		return nil, err
	}

	ix := &Indexer{
		vector:     vector,
		graph:      graph,
		extractor:  extractor,
		pool:       pool,
		batchSize:  DefaultBatchSize,
		maxRetries: 1,
		retryDelay: time.Second,
		logger:     slog.Default().With("component", "indexer"),
	}

	for _, opt := range opts {
		if err := opt(ix); err != nil {
			ix.Release()
			return nil, err
		}
	}

	return ix, nil
}

// Index adds chunks to the vector index and their extracted entities and
// relationships to the graph index, one batch at a time.
//
// A chunk without an ID gets one derived from its document and position.
// Storage failures stop indexing and are returned as is. Extraction failures
// don't: the remaining chunks are still indexed, the failed ones are listed
// in the Report, and the returned error wraps ErrExtractionFailed.
func (ix *Indexer) Index(ctx context.Context, chunks ...*core.Chunk) (*Report, error) {
	report := &Report{}
	var extractErrs []error

	for start := 0; start < len(chunks); start += ix.batchSize {
		batch := withIDs(chunks[start:min(start+ix.batchSize, len(chunks))])

		n, err := ix.vector.Add(ctx, batch...)
		report.Chunks += n
		if err != nil {
			return report, err
		}

		entities, rels, errs := ix.extractBatch(ctx, batch)
		for i, err := range errs {
			if err != nil {
				report.Failed = append(report.Failed, batch[i].ID)
				extractErrs = append(extractErrs, fmt.Errorf("chunk %s: %w", batch[i].ID, err))
			}
		}

		n, err = ix.graph.AddEntities(ctx, entities...)
		report.Entities += n
		if err != nil {
			return report, err
		}
		n, err = ix.graph.AddRelationships(ctx, rels...)
		report.Relationships += n
		if err != nil {
			return report, err
		}

		ix.logger.Debug("indexed batch",
			"chunks", len(batch),
			"entities", len(entities),
			"relationships", len(rels),
			"failed", len(extractErrs))
	}

	if len(extractErrs) > 0 {
		ix.logger.Warn("extraction failed for some chunks", "count", len(report.Failed))
		return report, fmt.Errorf("%w: %w", ErrExtractionFailed, errors.Join(extractErrs...))
	}
	return report, nil
}

// extractBatch runs extraction for every chunk on the pool. errs is indexed
// like batch.
func (ix *Indexer) extractBatch(ctx context.Context, batch []*core.Chunk) ([]core.Entity, []core.Relationship, []error) {
	extractions := make([]*ai.Extraction, len(batch))
	errs := make([]error, len(batch))

	var wg sync.WaitGroup
	for i, chunk := range batch {
		wg.Add(1)
		err := ix.pool.Submit(func() {
			defer wg.Done()
			errs[i] = RetryWithBackoff(ctx, func() error {
				var err error
				extractions[i], err = ix.extractor.ExtractGraph(ctx, chunk.Content)
				return err
			}, ix.maxRetries, ix.retryDelay)
		})
		if err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	var entities []core.Entity
	var rels []core.Relationship
	for i, extraction := range extractions {
		if errs[i] != nil || extraction.IsEmpty() {
			continue
		}
		e, r := toGraph(batch[i].ID, extraction)
		entities = append(entities, e...)
		rels = append(rels, r...)
	}
	return entities, rels, errs
}

// toGraph converts an extraction into graph records citing chunkID.
// Unnamed entities and incomplete relationships are dropped.
func toGraph(chunkID string, extraction *ai.Extraction) ([]core.Entity, []core.Relationship) {
	entities := make([]core.Entity, 0, len(extraction.Entities))
	for _, e := range extraction.Entities {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		entities = append(entities, core.Entity{
			Name:           e.Name,
			Type:           core.ParseEntityType(e.Type),
			Description:    strings.TrimSpace(e.Description),
			SourceChunkIDs: []string{chunkID},
		})
	}

	rels := make([]core.Relationship, 0, len(extraction.Relationships))
	for _, r := range extraction.Relationships {
		rel := core.Relationship{
			Source:         r.Source,
			Target:         r.Target,
			Type:           r.Type,
			SourceChunkIDs: []string{chunkID},
		}
		if core.ValidateRelationship(&rel) != nil {
			continue
		}
		rels = append(rels, rel)
	}
	return entities, rels
}

// withIDs returns batch with missing IDs derived from document and position.
// Chunks that need an ID are copied; the caller's values are not modified.
func withIDs(batch []*core.Chunk) []*core.Chunk {
	out := make([]*core.Chunk, len(batch))
	for i, chunk := range batch {
		out[i] = chunk
		if chunk != nil && chunk.ID == "" && chunk.SourceDocumentID != "" {
			c := *chunk
			c.ID = core.ChunkIDFor(c.SourceDocumentID, c.PositionIndex)
			out[i] = &c
		}
	}
	return out
}

// Release releases the worker pool.
// The indexer should not be used after calling Release.
func (ix *Indexer) Release() {
	if ix.pool != nil {
		ix.pool.Release()
	}
}
