package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siherrmann/memories/helper"
)

// IndexType is a pgvector index method for chunk embeddings.
type IndexType string

const (
	IndexHNSW    IndexType = "hnsw"
	IndexIVFFlat IndexType = "ivfflat"
)

// IndexParams tunes the vector index. Zero values use the pgvector defaults:
// M 16 and EfConstruction 64 for HNSW, Lists 100 for IVFFlat.
type IndexParams struct {
	M              int
	EfConstruction int
	Lists          int
}

// ChangeIndexType replaces the embedding index of the transcript chunks.
func (h *ChunksDBHandler) ChangeIndexType(ctx context.Context, indexType IndexType, params IndexParams) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var createIndexSQL string
	switch indexType {
	case IndexHNSW:
		m := valueOr(params.M, 16)
		efConstruction := valueOr(params.EfConstruction, 64)
		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_transcript_chunks_embedding ON transcript_chunks USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, efConstruction,
		)
	case IndexIVFFlat:
		lists := valueOr(params.Lists, 100)
		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_transcript_chunks_embedding ON transcript_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		)
	default:
		return helper.NewError("change index type", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType))
	}

	_, err := h.db.Instance.ExecContext(ctx, `DROP INDEX IF EXISTS idx_transcript_chunks_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	h.db.Logger.Info("Dropped existing vector index")

	_, err = h.db.Instance.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	h.db.Logger.Info("Created vector index", slog.String("type", string(indexType)), slog.Any("params", params))

	return nil
}

func valueOr(v int, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
