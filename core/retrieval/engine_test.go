package retrieval

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/memories/helper"
	"github.com/siherrmann/memories/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	t.Run("Create engine with handlers", func(t *testing.T) {
		h := initHandlers(t)
		engine := NewEngine(h.chunks, h.entities)

		require.NotNil(t, engine)
		assert.NotNil(t, engine.chunks)
		assert.NotNil(t, engine.entities)
	})
}

func TestVectorRetrieve(t *testing.T) {
	h := initHandlers(t)
	engine := NewEngine(h.chunks, h.entities)

	interview, _ := seedInterview(t, h, "vector-retrieve", []testChunk{
		{text: "Ik ben geboren in Amsterdam.", embedding: []float32{1, 0, 0}},
		{text: "Mijn vader was bakker.", embedding: []float32{0, 1, 0}},
		{text: "We woonden aan de gracht.", embedding: []float32{0.9, 0.1, 0}},
	})

	t.Run("Returns similar chunks ordered by similarity", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.InterviewRIDs = []uuid.UUID{interview.RID}

		fragments, err := engine.VectorRetrieve(context.Background(), []float32{1, 0, 0}, &config)
		require.NoError(t, err)
		require.Len(t, fragments, 2, "Expected the orthogonal chunk to be below the threshold")

		assert.Equal(t, "Ik ben geboren in Amsterdam.", fragments[0].Chunk.Text)
		assert.Equal(t, "We woonden aan de gracht.", fragments[1].Chunk.Text)
		assert.InDelta(t, 1.0, fragments[0].SimilarityScore, 1e-6)
		assert.Equal(t, fragments[0].SimilarityScore, fragments[0].Score)
		assert.Equal(t, model.MethodVector, fragments[0].Method)
		assert.Equal(t, interview.RID, fragments[0].InterviewRID)
		assert.Equal(t, "vector-retrieve", fragments[0].InterviewLabel)
		assert.Equal(t, 2, fragments[1].ChunkIndex)
	})

	t.Run("Respects top-k", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.TopK = 1
		config.InterviewRIDs = []uuid.UUID{interview.RID}

		fragments, err := engine.VectorRetrieve(context.Background(), []float32{1, 0, 0}, &config)
		require.NoError(t, err)
		assert.Len(t, fragments, 1)
	})

	t.Run("Empty embedding is rejected", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		_, err := engine.VectorRetrieve(context.Background(), nil, &config)
		assert.Error(t, err)
	})

	t.Run("Cancelled context is returned", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		config := model.DefaultQueryConfig()
		_, err := engine.VectorRetrieve(ctx, []float32{1, 0, 0}, &config)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEntityRetrieve(t *testing.T) {
	h := initHandlers(t)
	engine := NewEngine(h.chunks, h.entities)

	first, firstChunks := seedInterview(t, h, "entity-retrieve-a", []testChunk{
		{text: "Ik ben geboren in Zaandam."},
		{text: "Zaandam lag aan de Zaan en in Zaandam was alles."},
	})
	seedMention(t, h, first, firstChunks[0], "Zaandam", model.LabelLocation, 0)
	seedMention(t, h, first, firstChunks[1], "Zaandam", model.LabelLocation, 27)

	second, secondChunks := seedInterview(t, h, "entity-retrieve-b", []testChunk{
		{text: "Later verhuisden we naar Zaandam."},
	})
	seedMention(t, h, second, secondChunks[0], "Zaandam", model.LabelLocation, 0)

	t.Run("Finds chunks across interviews in order", func(t *testing.T) {
		config := model.DefaultQueryConfig()

		fragments, err := engine.EntityRetrieve(context.Background(), "zaandam", &config)
		require.NoError(t, err)
		require.Len(t, fragments, 3)

		assert.Equal(t, "entity-retrieve-a", fragments[0].InterviewLabel)
		assert.Equal(t, 0, fragments[0].ChunkIndex)
		assert.Equal(t, "entity-retrieve-a", fragments[1].InterviewLabel)
		assert.Equal(t, 1, fragments[1].ChunkIndex)
		assert.Equal(t, "entity-retrieve-b", fragments[2].InterviewLabel)

		for _, fragment := range fragments {
			assert.Equal(t, model.MethodEntity, fragment.Method)
			assert.Equal(t, 1.0, fragment.Score)
			require.NotEmpty(t, fragment.Entities)
			assert.Equal(t, "Zaandam", fragment.Entities[0].Text)
			assert.Contains(t, fragment.Chunk.Text, "Zaandam")
		}
	})

	t.Run("Filters by interview", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.InterviewRIDs = []uuid.UUID{second.RID}

		fragments, err := engine.EntityRetrieve(context.Background(), "Zaandam", &config)
		require.NoError(t, err)
		require.Len(t, fragments, 1)
		assert.Equal(t, "Later verhuisden we naar Zaandam.", fragments[0].Chunk.Text)
	})

	t.Run("Filters by label", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.Label = model.LabelPerson

		fragments, err := engine.EntityRetrieve(context.Background(), "Zaandam", &config)
		require.NoError(t, err)
		assert.Empty(t, fragments)
	})

	t.Run("Respects top-k", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.TopK = 2

		fragments, err := engine.EntityRetrieve(context.Background(), "Zaandam", &config)
		require.NoError(t, err)
		assert.Len(t, fragments, 2)
	})

	t.Run("Unknown entity gives no fragments", func(t *testing.T) {
		config := model.DefaultQueryConfig()

		fragments, err := engine.EntityRetrieve(context.Background(), "Atlantis", &config)
		require.NoError(t, err)
		assert.Empty(t, fragments)
	})

	t.Run("Empty text is rejected", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		_, err := engine.EntityRetrieve(context.Background(), "", &config)
		assert.Error(t, err)
	})
}

func TestEntityRetrieveUnknownChunk(t *testing.T) {
	h := initHandlers(t)
	engine := NewEngine(h.chunks, h.entities)

	interview, chunks := seedInterview(t, h, "entity-retrieve-dangling", []testChunk{
		{text: "In Purmerend was de markt."},
	})
	dangling := *chunks[0]
	dangling.Chunk.ID = model.ChunkID(7)
	seedMention(t, h, interview, &dangling, "Purmerend", model.LabelLocation, 0)

	t.Run("Mention of a missing chunk is unresolved", func(t *testing.T) {
		config := model.DefaultQueryConfig()

		_, err := engine.EntityRetrieve(context.Background(), "Purmerend", &config)
		assert.ErrorIs(t, err, helper.ErrUnresolvedReference)
	})
}

func TestGetSurrounding(t *testing.T) {
	h := initHandlers(t)
	engine := NewEngine(h.chunks, h.entities)

	interview, _ := seedInterview(t, h, "surrounding", []testChunk{
		{text: "een"}, {text: "twee"}, {text: "drie"}, {text: "vier"}, {text: "vijf"},
	})

	t.Run("Returns neighbors in order", func(t *testing.T) {
		surrounding, err := engine.GetSurrounding(context.Background(), interview.RID, 2, 1)
		require.NoError(t, err)
		require.Len(t, surrounding, 2)
		assert.Equal(t, "twee", surrounding[0].Text)
		assert.Equal(t, "vier", surrounding[1].Text)
	})

	t.Run("Stops at the interview bounds", func(t *testing.T) {
		surrounding, err := engine.GetSurrounding(context.Background(), interview.RID, 0, 2)
		require.NoError(t, err)
		require.Len(t, surrounding, 2)
		assert.Equal(t, "twee", surrounding[0].Text)
		assert.Equal(t, "drie", surrounding[1].Text)
	})

	t.Run("Zero width gives no context", func(t *testing.T) {
		surrounding, err := engine.GetSurrounding(context.Background(), interview.RID, 2, 0)
		require.NoError(t, err)
		assert.Empty(t, surrounding)
	})
}

func TestGetChunkEntities(t *testing.T) {
	h := initHandlers(t)
	engine := NewEngine(h.chunks, h.entities)

	interview, chunks := seedInterview(t, h, "chunk-entities", []testChunk{
		{text: "Oom Kees woonde in Edam."},
		{text: "Tante Truus bleef in Volendam."},
	})
	seedMention(t, h, interview, chunks[0], "Kees", model.LabelPerson, 0)
	seedMention(t, h, interview, chunks[0], "Edam", model.LabelLocation, 0)
	seedMention(t, h, interview, chunks[1], "Volendam", model.LabelLocation, 25)

	t.Run("Returns only mentions inside the chunk", func(t *testing.T) {
		entities, err := engine.GetChunkEntities(context.Background(), interview.RID, chunks[0].Chunk.ID)
		require.NoError(t, err)
		require.Len(t, entities, 2)
		assert.Equal(t, "Kees", entities[0].Text)
		assert.Equal(t, "Edam", entities[1].Text)
	})
}
