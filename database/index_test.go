package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeIndexType(t *testing.T) {
	database := initDB(t)

	// Needed because a chunk has a reference to an interview
	_, err := NewInterviewsDBHandler(database, true)
	require.NoError(t, err, "Expected NewInterviewsDBHandler to not return an error")

	chunksDbHandler, err := NewChunksDBHandler(database, testEmbeddingDim, true)
	require.NoError(t, err, "Expected NewChunksDBHandler to not return an error")

	ctx := context.Background()

	t.Run("Change index to HNSW with default params", func(t *testing.T) {
		err := chunksDbHandler.ChangeIndexType(ctx, IndexHNSW, IndexParams{})
		assert.NoError(t, err, "Expected ChangeIndexType to hnsw to not return an error")
	})

	t.Run("Change index to HNSW with custom params", func(t *testing.T) {
		err := chunksDbHandler.ChangeIndexType(ctx, IndexHNSW, IndexParams{M: 32, EfConstruction: 128})
		assert.NoError(t, err, "Expected ChangeIndexType to hnsw with custom params to not return an error")
	})

	t.Run("Change index to IVFFlat", func(t *testing.T) {
		err := chunksDbHandler.ChangeIndexType(ctx, IndexIVFFlat, IndexParams{Lists: 10})
		assert.NoError(t, err, "Expected ChangeIndexType to ivfflat to not return an error")
	})

	t.Run("Change index with unsupported index type", func(t *testing.T) {
		err := chunksDbHandler.ChangeIndexType(ctx, IndexType("invalid"), IndexParams{})
		assert.Error(t, err, "Expected error when using unsupported index type")
		assert.Contains(t, err.Error(), "unsupported index type", "Expected error message to mention unsupported index type")
	})

	t.Run("Change index with cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := chunksDbHandler.ChangeIndexType(cancelled, IndexHNSW, IndexParams{})
		assert.Error(t, err, "Expected error with cancelled context")
	})

	t.Run("Change index back to HNSW for cleanup", func(t *testing.T) {
		err := chunksDbHandler.ChangeIndexType(ctx, IndexHNSW, IndexParams{})
		assert.NoError(t, err, "Expected ChangeIndexType to hnsw for cleanup to not return an error")
	})
}
