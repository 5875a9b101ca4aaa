package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/siherrmann/memories/helper"
	"github.com/siherrmann/memories/model"
)

// Query is a fragment search request. Text is matched against entity
// mentions, Embedding against chunk embeddings.
type Query struct {
	Text      string
	Embedding []float32
}

// Strategy defines a retrieval strategy
type Strategy interface {
	Retrieve(ctx context.Context, query Query, config *model.QueryConfig) ([]*model.Fragment, error)
}

// VectorOnlyStrategy performs pure vector similarity search
type VectorOnlyStrategy struct {
	engine *Engine
}

// NewVectorOnlyStrategy creates a new vector-only strategy
func NewVectorOnlyStrategy(engine *Engine) *VectorOnlyStrategy {
	return &VectorOnlyStrategy{engine: engine}
}

// Retrieve performs vector-only retrieval
func (s *VectorOnlyStrategy) Retrieve(ctx context.Context, query Query, config *model.QueryConfig) ([]*model.Fragment, error) {
	return s.engine.VectorRetrieve(ctx, query.Embedding, config)
}

// EntityStrategy retrieves all chunks mentioning an entity
type EntityStrategy struct {
	engine *Engine
}

// NewEntityStrategy creates a new entity strategy
func NewEntityStrategy(engine *Engine) *EntityStrategy {
	return &EntityStrategy{engine: engine}
}

// Retrieve performs entity retrieval
func (s *EntityStrategy) Retrieve(ctx context.Context, query Query, config *model.QueryConfig) ([]*model.Fragment, error) {
	return s.engine.EntityRetrieve(ctx, query.Text, config)
}

// HybridStrategy combines vector and entity signals with configurable weights
type HybridStrategy struct {
	engine *Engine
}

// NewHybridStrategy creates a new hybrid strategy
func NewHybridStrategy(engine *Engine) *HybridStrategy {
	return &HybridStrategy{engine: engine}
}

// Retrieve performs hybrid retrieval with weighted combination.
// Either part of the query may be empty, but not both.
func (s *HybridStrategy) Retrieve(ctx context.Context, query Query, config *model.QueryConfig) ([]*model.Fragment, error) {
	if query.Text == "" && len(query.Embedding) == 0 {
		return nil, helper.NewError("hybrid retrieve", fmt.Errorf("query has neither text nor embedding"))
	}

	resultMap := make(map[string]*model.Fragment)
	var order []string

	if len(query.Embedding) > 0 {
		vectorResults, err := s.engine.VectorRetrieve(ctx, query.Embedding, config)
		if err != nil {
			return nil, err
		}

		for _, vResult := range vectorResults {
			key := fragmentKey(vResult)
			vResult.Score = vResult.SimilarityScore * config.VectorWeight
			vResult.Method = model.MethodHybrid
			resultMap[key] = vResult
			order = append(order, key)
		}
	}

	if query.Text != "" {
		// Entity matches are not limited here, the combined list is cut to top-k below
		entityConfig := *config
		entityConfig.TopK = 0
		entityResults, err := s.engine.EntityRetrieve(ctx, query.Text, &entityConfig)
		if err != nil {
			return nil, err
		}

		for _, eResult := range entityResults {
			key := fragmentKey(eResult)
			if existing, exists := resultMap[key]; exists {
				existing.Score += config.EntityWeight
				existing.Entities = append(existing.Entities, eResult.Entities...)
				continue
			}

			eResult.Score = config.EntityWeight
			eResult.Method = model.MethodHybrid
			resultMap[key] = eResult
			order = append(order, key)
		}
	}

	results := make([]*model.Fragment, 0, len(order))
	for _, key := range order {
		results = append(results, resultMap[key])
	}

	// Sort by combined score
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	// Limit to top-k
	if config.TopK > 0 && len(results) > config.TopK {
		results = results[:config.TopK]
	}

	return results, nil
}

// ContextualStrategy adds the surrounding chunks and the chunk's entity
// mentions to the results of another strategy
type ContextualStrategy struct {
	engine *Engine
	inner  Strategy
}

// NewContextualStrategy creates a new contextual strategy around inner
func NewContextualStrategy(engine *Engine, inner Strategy) *ContextualStrategy {
	return &ContextualStrategy{engine: engine, inner: inner}
}

// Retrieve performs the inner retrieval and attaches context
func (s *ContextualStrategy) Retrieve(ctx context.Context, query Query, config *model.QueryConfig) ([]*model.Fragment, error) {
	results, err := s.inner.Retrieve(ctx, query, config)
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		if len(result.Entities) == 0 {
			result.Entities, err = s.engine.GetChunkEntities(ctx, result.InterviewRID, result.Chunk.ID)
			if err != nil {
				return nil, err
			}
		}

		result.Context, err = s.engine.GetSurrounding(ctx, result.InterviewRID, result.ChunkIndex, config.ContextChunks)
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

func fragmentKey(fragment *model.Fragment) string {
	return fragment.InterviewRID.String() + "/" + fragment.Chunk.ID
}
