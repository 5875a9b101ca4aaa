package model

import (
	"time"

	"github.com/google/uuid"
)

// ChunkRecord is a persisted transcript chunk with its embedding.
// Similarity is only set by similarity searches.
type ChunkRecord struct {
	ID             int64     `json:"id"`
	InterviewID    int64     `json:"interview_id"`
	InterviewRID   uuid.UUID `json:"interview_rid"`
	InterviewLabel string    `json:"interview_label"`
	ChunkIndex     int       `json:"chunk_index"`
	Chunk          Chunk     `json:"chunk"`
	Embedding      []float32 `json:"embedding,omitempty"`
	Similarity     *float64  `json:"similarity,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// EntityRecord is a persisted entity mention.
type EntityRecord struct {
	ID             int64     `json:"id"`
	InterviewID    int64     `json:"interview_id"`
	InterviewRID   uuid.UUID `json:"interview_rid"`
	InterviewLabel string    `json:"interview_label"`
	Entity         Entity    `json:"entity"`
	CreatedAt      time.Time `json:"created_at"`
}
