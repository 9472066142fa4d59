package badger

import (
	"context"
	"testing"

	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func TestChunkRepository_PutAndGet(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	added, err := stores.Chunks.PutChunks(ctx,
		&core.Chunk{ID: "c1", Content: "BERT is a variant of the Transformer.", Embedding: []float32{1, 0}},
		&core.Chunk{ID: "c2", Content: "GPT is a variant of the Transformer.", Embedding: []float32{0, 1}},
	)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.NotZero(t, added[0].Ordinal)
	assert.Greater(t, added[1].Ordinal, added[0].Ordinal)
	assert.False(t, added[0].InsertedAt.IsZero())

	got, err := stores.Chunks.GetChunk(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "BERT is a variant of the Transformer.", got.Content)
	assert.Equal(t, []float32{1, 0}, got.Embedding)

	_, err = stores.Chunks.GetChunk(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	many, err := stores.Chunks.GetChunks(ctx, "c2", "missing", "c1")
	require.NoError(t, err)
	require.Len(t, many, 2)
	assert.Equal(t, "c2", many[0].ID)
	assert.Equal(t, "c1", many[1].ID)
}

func TestChunkRepository_OverwriteKeepsOrdinal(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	first, err := stores.Chunks.PutChunks(ctx, &core.Chunk{ID: "c1", Content: "old"})
	require.NoError(t, err)
	ordinal := first[0].Ordinal
	inserted := first[0].InsertedAt

	_, err = stores.Chunks.PutChunks(ctx, &core.Chunk{ID: "c1", Content: "new"})
	require.NoError(t, err)

	got, err := stores.Chunks.GetChunk(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Content)
	assert.Equal(t, ordinal, got.Ordinal)
	assert.Equal(t, inserted, got.InsertedAt)

	count, err := stores.Chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestChunkRepository_DuplicateInBatch(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	_, err := stores.Chunks.PutChunks(ctx,
		&core.Chunk{ID: "c1", Content: "first"},
		&core.Chunk{ID: "c1", Content: "second"},
	)
	require.NoError(t, err)

	var seen []string
	require.NoError(t, stores.Chunks.ScanChunks(ctx, func(c *core.Chunk) error {
		seen = append(seen, c.Content)
		return nil
	}))
	assert.Equal(t, []string{"second"}, seen)
}

func TestChunkRepository_ScanAndPaging(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	for _, id := range []string{"z", "a", "m", "b"} {
		_, err := stores.Chunks.PutChunks(ctx, &core.Chunk{ID: id, Content: "content " + id})
		require.NoError(t, err)
	}

	var order []string
	require.NoError(t, stores.Chunks.ScanChunks(ctx, func(c *core.Chunk) error {
		order = append(order, c.ID)
		return nil
	}))
	assert.Equal(t, []string{"z", "a", "m", "b"}, order, "scan follows insertion order")

	page, err := stores.Chunks.GetChunksAfter(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "z", page[0].ID)
	assert.Equal(t, "a", page[1].ID)

	rest, err := stores.Chunks.GetChunksAfter(ctx, page[1].Ordinal, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "m", rest[0].ID)
	assert.Equal(t, "b", rest[1].ID)

	none, err := stores.Chunks.GetChunksAfter(ctx, rest[1].Ordinal, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChunkRepository_Reset(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	_, err := stores.Chunks.PutChunks(ctx, &core.Chunk{ID: "c1", Content: "text"})
	require.NoError(t, err)
	require.NoError(t, stores.Chunks.Reset(ctx))

	count, err := stores.Chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	added, err := stores.Chunks.PutChunks(ctx, &core.Chunk{ID: "c1", Content: "text"})
	require.NoError(t, err)
	assert.NotZero(t, added[0].Ordinal)
}
