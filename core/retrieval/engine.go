package retrieval

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/siherrmann/memories/database"
	"github.com/siherrmann/memories/helper"
	"github.com/siherrmann/memories/model"
)

// maxMentions bounds the entity mentions loaded for one entity query.
const maxMentions = 1000

// Engine finds interview fragments by entity mention and by embedding similarity
type Engine struct {
	chunks   database.ChunksDBHandlerFunctions
	entities database.EntitiesDBHandlerFunctions
}

// NewEngine creates a new retrieval engine
func NewEngine(chunks database.ChunksDBHandlerFunctions, entities database.EntitiesDBHandlerFunctions) *Engine {
	return &Engine{
		chunks:   chunks,
		entities: entities,
	}
}

// VectorRetrieve performs pure vector similarity search
func (e *Engine) VectorRetrieve(ctx context.Context, embedding []float32, config *model.QueryConfig) ([]*model.Fragment, error) {
	if len(embedding) == 0 {
		return nil, helper.NewError("vector retrieve", fmt.Errorf("embedding is empty"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := e.chunks.SelectChunksBySimilarity(embedding, config.TopK, config.SimilarityThreshold, config.InterviewRIDs)
	if err != nil {
		return nil, err
	}

	fragments := make([]*model.Fragment, len(records))
	for i, record := range records {
		score := 0.0
		if record.Similarity != nil {
			score = *record.Similarity
		}
		fragments[i] = &model.Fragment{
			InterviewRID:    record.InterviewRID,
			InterviewLabel:  record.InterviewLabel,
			ChunkIndex:      record.ChunkIndex,
			Chunk:           record.Chunk,
			Score:           score,
			SimilarityScore: score,
			Method:          model.MethodVector,
		}
	}

	return fragments, nil
}

// EntityRetrieve finds the chunks mentioning an entity text.
// Mentions in the same chunk are grouped into one fragment.
// Fragments are ordered by interview label and position.
func (e *Engine) EntityRetrieve(ctx context.Context, text string, config *model.QueryConfig) ([]*model.Fragment, error) {
	if text == "" {
		return nil, helper.NewError("entity retrieve", fmt.Errorf("entity text is empty"))
	}

	mentions, err := e.entities.SelectEntitiesByText(text, config.Label, maxMentions)
	if err != nil {
		return nil, err
	}

	allowed := make(map[uuid.UUID]bool, len(config.InterviewRIDs))
	for _, rid := range config.InterviewRIDs {
		allowed[rid] = true
	}

	chunksByInterview := make(map[uuid.UUID]map[string]*model.ChunkRecord)
	index := make(map[string]*model.Fragment)
	var fragments []*model.Fragment
	for _, mention := range mentions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(allowed) > 0 && !allowed[mention.InterviewRID] {
			continue
		}

		key := mention.InterviewRID.String() + "/" + mention.Entity.ChunkID
		if fragment, ok := index[key]; ok {
			fragment.Entities = append(fragment.Entities, mention.Entity)
			continue
		}
		if config.TopK > 0 && len(fragments) >= config.TopK {
			continue
		}

		chunks, ok := chunksByInterview[mention.InterviewRID]
		if !ok {
			chunks, err = e.chunksOf(mention.InterviewRID)
			if err != nil {
				return nil, err
			}
			chunksByInterview[mention.InterviewRID] = chunks
		}

		chunk, ok := chunks[mention.Entity.ChunkID]
		if !ok {
			return nil, helper.NewError("entity retrieve", helper.UnresolvedReference("chunk %s of interview %s", mention.Entity.ChunkID, mention.InterviewLabel))
		}

		fragment := &model.Fragment{
			InterviewRID:   mention.InterviewRID,
			InterviewLabel: mention.InterviewLabel,
			ChunkIndex:     chunk.ChunkIndex,
			Chunk:          chunk.Chunk,
			Score:          1.0,
			Method:         model.MethodEntity,
			Entities:       []model.Entity{mention.Entity},
		}
		index[key] = fragment
		fragments = append(fragments, fragment)
	}

	return fragments, nil
}

// GetSurrounding retrieves up to n chunks before and after a chunk of an interview, in order
func (e *Engine) GetSurrounding(ctx context.Context, interviewRID uuid.UUID, chunkIndex int, n int) ([]model.Chunk, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := e.chunks.SelectChunksByInterview(interviewRID)
	if err != nil {
		return nil, err
	}

	var surrounding []model.Chunk
	for _, record := range records {
		if record.ChunkIndex == chunkIndex {
			continue
		}
		if record.ChunkIndex >= chunkIndex-n && record.ChunkIndex <= chunkIndex+n {
			surrounding = append(surrounding, record.Chunk)
		}
	}

	return surrounding, nil
}

// GetChunkEntities retrieves the entity mentions inside one chunk of an interview
func (e *Engine) GetChunkEntities(ctx context.Context, interviewRID uuid.UUID, chunkID string) ([]model.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := e.entities.SelectEntitiesByInterview(interviewRID)
	if err != nil {
		return nil, err
	}

	var entities []model.Entity
	for _, record := range records {
		if record.Entity.ChunkID == chunkID {
			entities = append(entities, record.Entity)
		}
	}

	return entities, nil
}

// chunksOf loads the chunks of an interview keyed by chunk id
func (e *Engine) chunksOf(interviewRID uuid.UUID) (map[string]*model.ChunkRecord, error) {
	records, err := e.chunks.SelectChunksByInterview(interviewRID)
	if err != nil {
		return nil, err
	}

	chunks := make(map[string]*model.ChunkRecord, len(records))
	for _, record := range records {
		chunks[record.Chunk.ID] = record
	}
	return chunks, nil
}
