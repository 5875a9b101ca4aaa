package model

import "github.com/google/uuid"

// QueryConfig represents configuration for a fragment search
type QueryConfig struct {
	// Vector search parameters
	TopK                int     `json:"top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`

	// Interview filtering
	InterviewRIDs []uuid.UUID `json:"interview_rids,omitempty"`

	// Entity search parameters
	Label string `json:"label,omitempty"` // Empty matches every label

	// Number of chunks before and after a hit added as context
	ContextChunks int `json:"context_chunks,omitempty"`

	// Ranking parameters
	VectorWeight float64 `json:"vector_weight"` // Weight for similarity score
	EntityWeight float64 `json:"entity_weight"` // Weight for entity mentions
}

// DefaultQueryConfig returns the default search configuration
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK:                10,
		SimilarityThreshold: 0.5,
		ContextChunks:       0,
		VectorWeight:        0.5,
		EntityWeight:        0.5,
	}
}

// Retrieval methods of a fragment
const (
	MethodEntity = "entity"
	MethodVector = "vector"
	MethodHybrid = "hybrid"
)

// Fragment is an interview chunk found by a search
type Fragment struct {
	InterviewRID    uuid.UUID `json:"interview_rid"`
	InterviewLabel  string    `json:"interview_label"`
	ChunkIndex      int       `json:"chunk_index"`
	Chunk           Chunk     `json:"chunk"`
	Score           float64   `json:"score"`            // Combined score from ranking
	SimilarityScore float64   `json:"similarity_score"` // Cosine similarity score
	Method          string    `json:"method"`           // How it was found
	Entities        []Entity  `json:"entities,omitempty"`
	Context         []Chunk   `json:"context,omitempty"`
}
