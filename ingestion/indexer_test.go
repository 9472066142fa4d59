package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/graphrag/ai"
	"github.com/poiesic/graphrag/ai/mock"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/graph"
	"github.com/poiesic/graphrag/storage/badger"
	"github.com/poiesic/graphrag/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	stores   *badger.Stores
	embedder *mock.MockEmbedder
	vector   *vector.Index
	graph    *graph.Index
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	embedder := mock.NewMockEmbedder()
	vec, err := vector.NewIndex(context.Background(), stores.Chunks, embedder)
	require.NoError(t, err)
	g, err := graph.NewIndex(stores.Graph)
	require.NoError(t, err)

	return &testEnv{stores: stores, embedder: embedder, vector: vec, graph: g}
}

func (env *testEnv) newIndexer(t *testing.T, extractor ai.EntityExtractor, opts ...Option) *Indexer {
	t.Helper()
	ix, err := NewIndexer(env.vector, env.graph, extractor, opts...)
	require.NoError(t, err)
	t.Cleanup(ix.Release)
	return ix
}

// transformerExtractor knows one fact per chunk.
func transformerExtractor() *mock.MockEntityExtractor {
	return &mock.MockEntityExtractor{
		ExtractGraphFunc: func(_ context.Context, text string) (*ai.Extraction, error) {
			switch {
			case strings.HasPrefix(text, "BERT"):
				return &ai.Extraction{
					Entities: []ai.ExtractedEntity{
						{Name: "BERT", Type: "technology", Description: "Bidirectional encoder"},
						{Name: "Transformer", Type: "TECHNOLOGY"},
					},
					Relationships: []ai.ExtractedRelationship{
						{Source: "BERT", Target: "Transformer", Type: "variant of"},
						{Source: "BERT", Target: "", Type: "BROKEN"},
					},
				}, nil
			case strings.HasPrefix(text, "GPT"):
				return &ai.Extraction{
					Entities: []ai.ExtractedEntity{{Name: "GPT", Type: "TECHNOLOGY"}, {Name: " "}},
					Relationships: []ai.ExtractedRelationship{
						{Source: "GPT", Target: "Transformer", Type: "VARIANT_OF"},
					},
				}, nil
			default:
				return &ai.Extraction{}, nil
			}
		},
	}
}

func TestNewIndexer_RequiresDependencies(t *testing.T) {
	env := newTestEnv(t)
	extractor := mock.NewMockEntityExtractor()

	_, err := NewIndexer(nil, env.graph, extractor)
	assert.ErrorIs(t, err, ErrVectorIndexRequired)

	_, err = NewIndexer(env.vector, nil, extractor)
	assert.ErrorIs(t, err, ErrGraphIndexRequired)

	_, err = NewIndexer(env.vector, env.graph, nil)
	assert.ErrorIs(t, err, ErrExtractorRequired)

	_, err = NewIndexer(env.vector, env.graph, extractor, WithBatchSize(0))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = NewIndexer(env.vector, env.graph, extractor, WithRetry(0, time.Second))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestIndexer_Index(t *testing.T) {
	env := newTestEnv(t)
	extractor := transformerExtractor()
	ix := env.newIndexer(t, extractor, WithBatchSize(2), WithPoolSize(4), WithLogger(nil))
	ctx := context.Background()

	report, err := ix.Index(ctx,
		&core.Chunk{ID: "c1", Content: "The Transformer relies on self-attention"},
		&core.Chunk{ID: "c2", Content: "BERT is a bidirectional encoder"},
		&core.Chunk{ID: "c3", Content: "GPT is a generative decoder"},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, 3, report.Entities)
	assert.Equal(t, 2, report.Relationships)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 3, extractor.CallCount())
	assert.Equal(t, 3, env.vector.Len())

	bert, err := env.graph.Entity(ctx, "bert")
	require.NoError(t, err)
	require.NotNil(t, bert)
	assert.Equal(t, core.EntityTypeTechnology, bert.Type)
	assert.Equal(t, "Bidirectional encoder", bert.Description)
	assert.Equal(t, []string{"c2"}, bert.SourceChunkIDs)

	transformer, err := env.graph.Entity(ctx, "Transformer")
	require.NoError(t, err)
	require.NotNil(t, transformer)
	assert.Equal(t, []string{"c2"}, transformer.SourceChunkIDs, "a relationship endpoint that already exists keeps its provenance")

	related, err := env.graph.RelatedEntities(ctx, "GPT", 2)
	require.NoError(t, err)
	require.Len(t, related, 3)
	assert.Equal(t, "BERT", related[2].Entity.Name)
}

func TestIndexer_DerivesChunkIDs(t *testing.T) {
	env := newTestEnv(t)
	ix := env.newIndexer(t, mock.NewMockEntityExtractor())
	ctx := context.Background()

	chunk := &core.Chunk{SourceDocumentID: "paper.pdf", PositionIndex: 4, Content: "Attention is all you need"}
	_, err := ix.Index(ctx, chunk)
	require.NoError(t, err)
	assert.Empty(t, chunk.ID, "caller's chunk is not modified")

	id := core.ChunkIDFor("paper.pdf", 4)
	stored, err := env.vector.Chunks(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Attention is all you need", stored[0].Content)

	attention, err := env.graph.Entity(ctx, "Attention")
	require.NoError(t, err)
	require.NotNil(t, attention)
	assert.Equal(t, []string{id}, attention.SourceChunkIDs)
}

func TestIndexer_ExtractionFailures(t *testing.T) {
	env := newTestEnv(t)
	cause := errors.New("model overloaded")
	extractor := &mock.MockEntityExtractor{
		ExtractGraphFunc: func(ctx context.Context, text string) (*ai.Extraction, error) {
			if strings.Contains(text, "GPT") {
				return nil, cause
			}
			return transformerExtractor().ExtractGraph(ctx, text)
		},
	}
	ix := env.newIndexer(t, extractor, WithRetry(2, time.Millisecond))

	report, err := ix.Index(context.Background(),
		&core.Chunk{ID: "c2", Content: "BERT is a bidirectional encoder"},
		&core.Chunk{ID: "c3", Content: "GPT is a generative decoder"},
	)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []string{"c3"}, report.Failed)
	assert.Equal(t, 2, report.Chunks, "failed chunks stay searchable")
	assert.Equal(t, 2, report.Entities)
	assert.Equal(t, 3, extractor.CallCount(), "the failing chunk is attempted twice")
}

func TestIndexer_RetriesExtraction(t *testing.T) {
	env := newTestEnv(t)
	var calls atomic.Int32
	extractor := &mock.MockEntityExtractor{
		ExtractGraphFunc: func(context.Context, string) (*ai.Extraction, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("transient")
			}
			return &ai.Extraction{Entities: []ai.ExtractedEntity{{Name: "BERT"}}}, nil
		},
	}
	ix := env.newIndexer(t, extractor, WithRetry(3, time.Millisecond))

	report, err := ix.Index(context.Background(), &core.Chunk{ID: "c2", Content: "BERT"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Entities)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIndexer_VectorFailureStops(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	}
	extractor := transformerExtractor()
	ix := env.newIndexer(t, extractor)

	report, err := ix.Index(context.Background(), &core.Chunk{ID: "c2", Content: "BERT is a bidirectional encoder"})
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	assert.Zero(t, report.Chunks)
	assert.Zero(t, extractor.CallCount())
}
