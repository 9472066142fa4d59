package badger

import (
	"context"
	"testing"

	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphRepository_Entities(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Graph.PutEntity(ctx, &core.Entity{Name: "BERT", Type: core.EntityTypeTechnology}))
	require.NoError(t, stores.Graph.PutEntity(ctx, &core.Entity{Name: "Transformer", Type: core.EntityTypeTechnology}))

	got, err := stores.Graph.GetEntity(ctx, "bert")
	require.NoError(t, err)
	assert.Equal(t, "BERT", got.Name)

	_, err = stores.Graph.GetEntity(ctx, "gpt")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	entities, err := stores.Graph.GetEntities(ctx, "transformer", "gpt", "bert")
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "Transformer", entities[0].Name)
	assert.Equal(t, "BERT", entities[1].Name)

	var names []string
	require.NoError(t, stores.Graph.ScanEntities(ctx, func(e *core.Entity) error {
		names = append(names, e.Name)
		return nil
	}))
	assert.Equal(t, []string{"BERT", "Transformer"}, names)
}

func TestGraphRepository_RelationshipsAndEdges(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	rel := &core.Relationship{Source: "BERT", Target: "Transformer", Type: "VARIANT_OF"}
	require.NoError(t, stores.Graph.PutRelationship(ctx, rel))
	require.NoError(t, stores.Graph.PutRelationship(ctx, &core.Relationship{Source: "GPT", Target: "Transformer", Type: "VARIANT_OF"}))

	got, err := stores.Graph.GetRelationship(ctx, rel.Key())
	require.NoError(t, err)
	assert.Equal(t, "BERT", got.Source)

	_, err = stores.Graph.GetRelationship(ctx, core.RelationshipKey{Source: "transformer", Target: "bert", Type: "VARIANT_OF"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	edges, err := stores.Graph.Edges(ctx, "transformer")
	require.NoError(t, err)
	assert.Equal(t, []storage.Edge{
		{Neighbor: "bert", Type: "VARIANT_OF", Outgoing: false},
		{Neighbor: "gpt", Type: "VARIANT_OF", Outgoing: false},
	}, edges)

	edges, err = stores.Graph.Edges(ctx, "bert")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.True(t, edges[0].Outgoing)
	assert.Equal(t, rel.Key(), edges[0].Relationship("bert"))

	// Prefix of another entity's key must not leak into its edges.
	require.NoError(t, stores.Graph.PutRelationship(ctx, &core.Relationship{Source: "BERT Large", Target: "BERT", Type: "VARIANT_OF"}))
	edges, err = stores.Graph.Edges(ctx, "bert")
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	count := 0
	require.NoError(t, stores.Graph.ScanRelationships(ctx, func(*core.Relationship) error {
		count++
		return nil
	}))
	assert.Equal(t, 3, count)
}

func TestGraphRepository_SelfLoop(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Graph.PutRelationship(ctx, &core.Relationship{Source: "Recursion", Target: "Recursion", Type: "DEFINED_BY"}))

	edges, err := stores.Graph.Edges(ctx, "recursion")
	require.NoError(t, err)
	assert.Len(t, edges, 2)
}

func TestGraphRepository_Reset(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Graph.PutEntity(ctx, &core.Entity{Name: "BERT"}))
	require.NoError(t, stores.Graph.PutRelationship(ctx, &core.Relationship{Source: "BERT", Target: "Transformer", Type: "VARIANT_OF"}))
	_, err := stores.Chunks.PutChunks(ctx, &core.Chunk{ID: "c1", Content: "kept"})
	require.NoError(t, err)

	require.NoError(t, stores.Graph.Reset(ctx))

	_, err = stores.Graph.GetEntity(ctx, "bert")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	edges, err := stores.Graph.Edges(ctx, "bert")
	require.NoError(t, err)
	assert.Empty(t, edges)

	count, err := stores.Chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "graph reset must not touch chunks")
}
