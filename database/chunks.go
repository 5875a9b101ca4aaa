package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/memories/helper"
	"github.com/siherrmann/memories/model"
	loadSql "github.com/siherrmann/memories/sql"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(record *model.ChunkRecord) error
	UpdateChunkEmbedding(id int64, embedding []float32) error
	SelectChunksByInterview(interviewRID uuid.UUID) ([]*model.ChunkRecord, error)
	SelectChunksBySimilarity(embedding []float32, limit int, threshold float64, interviewRIDs []uuid.UUID) ([]*model.ChunkRecord, error)
	DeleteChunksByInterview(interviewID int64) error
}

// ChunksDBHandler handles transcript chunk database operations
type ChunksDBHandler struct {
	db *helper.Database
}

// NewChunksDBHandler creates a new chunks database handler.
// It loads the chunk-related SQL functions and creates the table with an
// embedding column of embeddingDim dimensions. The interviews table must exist.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	chunksDbHandler := &ChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// CreateTable creates the 'transcript_chunks' table in the database.
// If the table already exists, it does not create it again.
// It also creates the vector index.
func (h *ChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init chunks", err)
	}

	h.db.Logger.Info("Checked/created table transcript_chunks")

	return nil
}

// InsertChunk inserts a transcript chunk of an interview.
// An empty embedding is stored as NULL.
func (h *ChunksDBHandler) InsertChunk(record *model.ChunkRecord) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5, $6, $7)`,
		record.InterviewID,
		record.Chunk.ID,
		record.ChunkIndex,
		record.Chunk.Text,
		record.Chunk.TimeRange.Start,
		record.Chunk.TimeRange.End,
		vector(record.Embedding),
	)

	err := scanChunk(row, record)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// UpdateChunkEmbedding sets the embedding of a chunk
func (h *ChunksDBHandler) UpdateChunkEmbedding(id int64, embedding []float32) error {
	_, err := h.db.Instance.Exec(
		`SELECT update_chunk_embedding($1, $2)`,
		id,
		vector(embedding),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectChunksByInterview retrieves all chunks of an interview in chunk order
func (h *ChunksDBHandler) SelectChunksByInterview(interviewRID uuid.UUID) ([]*model.ChunkRecord, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_chunks_by_interview($1)`,
		interviewRID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var records []*model.ChunkRecord
	for rows.Next() {
		record := &model.ChunkRecord{}
		err := scanChunk(rows, record)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return records, nil
}

// SelectChunksBySimilarity performs cosine similarity search over chunk embeddings.
// If interviewRIDs is nil or empty, searches across all interviews
func (h *ChunksDBHandler) SelectChunksBySimilarity(embedding []float32, limit int, threshold float64, interviewRIDs []uuid.UUID) ([]*model.ChunkRecord, error) {
	embeddingVector := pgvector.NewVector(embedding)

	// Convert interviewRIDs to PostgreSQL UUID array format
	var interviewRIDsParam interface{}
	if len(interviewRIDs) > 0 {
		rids := make([]string, len(interviewRIDs))
		for i, rid := range interviewRIDs {
			rids[i] = rid.String()
		}
		interviewRIDsParam = pq.Array(rids)
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_chunks_by_similarity($1, $2, $3, $4::uuid[])`,
		embeddingVector,
		limit,
		threshold,
		interviewRIDsParam,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var records []*model.ChunkRecord
	for rows.Next() {
		record := &model.ChunkRecord{}
		var similarity float64
		err := scanChunk(rows, record, &similarity)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		record.Similarity = &similarity

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return records, nil
}

// DeleteChunksByInterview deletes all chunks of an interview
func (h *ChunksDBHandler) DeleteChunksByInterview(interviewID int64) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_chunks_by_interview($1)`,
		interviewID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanChunk(row scanner, record *model.ChunkRecord, extra ...interface{}) error {
	var embedding *pgvector.Vector
	dest := []interface{}{
		&record.ID,
		&record.InterviewID,
		&record.InterviewRID,
		&record.InterviewLabel,
		&record.Chunk.ID,
		&record.ChunkIndex,
		&record.Chunk.Text,
		&record.Chunk.TimeRange.Start,
		&record.Chunk.TimeRange.End,
		&embedding,
		&record.CreatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	if err != nil {
		return err
	}

	record.Embedding = nil
	if embedding != nil {
		record.Embedding = embedding.Slice()
	}
	return nil
}

func vector(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}
