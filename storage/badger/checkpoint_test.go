package badger

import (
	"context"
	"testing"

	"github.com/poiesic/graphrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRepository(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	cp, err := stores.Checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	assert.Nil(t, cp)

	require.NoError(t, stores.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: "reembed", LastOrdinal: 42}))
	require.NoError(t, stores.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: "other", LastOrdinal: 7}))

	cp, err = stores.Checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, uint64(42), cp.LastOrdinal)
	assert.False(t, cp.UpdatedAt.IsZero())

	require.NoError(t, stores.Checkpoints.DeleteCheckpoint(ctx, "reembed"))
	cp, err = stores.Checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	assert.Nil(t, cp)

	t.Run("delete missing is not an error", func(t *testing.T) {
		assert.NoError(t, stores.Checkpoints.DeleteCheckpoint(ctx, "reembed"))
	})

	t.Run("other processors are untouched", func(t *testing.T) {
		cp, err := stores.Checkpoints.LoadCheckpoint(ctx, "other")
		require.NoError(t, err)
		require.NotNil(t, cp)
		assert.Equal(t, uint64(7), cp.LastOrdinal)
	})
}
