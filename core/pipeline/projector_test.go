package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/siherrmann/memories/helper"
	"github.com/siherrmann/memories/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunks() []model.Chunk {
	return []model.Chunk{
		{ID: model.ChunkID(0), TimeRange: model.TimeRange{Start: 0, End: 10}, Text: "Ik ben geboren in Amsterdam."},
		{ID: model.ChunkID(1), TimeRange: model.TimeRange{Start: 10, End: 20}, Text: "Mijn vader was bakker in de Jordaan."},
	}
}

func dutchChunks() []model.Chunk {
	return []model.Chunk{
		{ID: model.ChunkID(0), TimeRange: model.TimeRange{Start: 0, End: 4}, Text: "Wij woonden in België."},
		{ID: model.ChunkID(1), TimeRange: model.TimeRange{Start: 4, End: 8}, Text: "Daarna bij café Amsterdam."},
	}
}

func entityIn(chunk model.Chunk, text string, label string) model.Entity {
	start := strings.Index(chunk.Text, text)
	return model.Entity{Text: text, Label: label, LocalStart: start, LocalEnd: start + len(text), ChunkID: chunk.ID, Timestamps: chunk.TimeRange}
}

func TestCombine(t *testing.T) {
	t.Run("Concatenates chunks with separator", func(t *testing.T) {
		chunks := testChunks()

		fullText, offsets := Combine(chunks)
		assert.Equal(t, chunks[0].Text+Separator+chunks[1].Text+Separator, fullText)
		assert.Equal(t, 0, offsets[chunks[0].ID])
		assert.Equal(t, len(chunks[0].Text)+len(Separator), offsets[chunks[1].ID])
		assert.NoError(t, CheckConcatenation(fullText, chunks))
	})

	t.Run("Changed full text breaks the concatenation invariant", func(t *testing.T) {
		chunks := testChunks()
		fullText, _ := Combine(chunks)

		err := CheckConcatenation(strings.TrimSuffix(fullText, Separator), chunks)
		assert.ErrorIs(t, err, helper.ErrIntegrityViolation)
	})

	t.Run("No chunks give empty text", func(t *testing.T) {
		fullText, offsets := Combine(nil)
		assert.Equal(t, "", fullText)
		assert.Empty(t, offsets)
	})
}

func TestProject(t *testing.T) {
	t.Run("Global span matches local span", func(t *testing.T) {
		chunks := testChunks()
		store := model.NewEntityStore(
			entityIn(chunks[0], "Amsterdam", model.LabelLocation),
			entityIn(chunks[1], "bakker", model.LabelOccupation),
			entityIn(chunks[1], "Jordaan", model.LabelLocation),
		)
		fullText, offsets := Combine(chunks)

		require.NoError(t, Project(store, chunks, offsets))

		for _, e := range store.All() {
			chunk := chunks[0]
			if e.ChunkID == chunks[1].ID {
				chunk = chunks[1]
			}
			assert.Equal(t, chunk.Text[e.LocalStart:e.LocalEnd], fullText[e.GlobalStart:e.GlobalEnd], "Offset round trip for %q", e.Text)
			assert.Equal(t, e.LocalEnd-e.LocalStart, e.GlobalEnd-e.GlobalStart)
		}
	})

	t.Run("Multi byte text keeps the spans", func(t *testing.T) {
		chunks := dutchChunks()
		store := model.NewEntityStore(
			entityIn(chunks[0], "België", model.LabelLocation),
			entityIn(chunks[1], "café", model.LabelFood),
			entityIn(chunks[1], "Amsterdam", model.LabelLocation),
		)
		fullText, offsets := Combine(chunks)

		require.NoError(t, Project(store, chunks, offsets))

		for _, e := range store.All() {
			chunk := chunks[0]
			if e.ChunkID == chunks[1].ID {
				chunk = chunks[1]
			}
			assert.Equal(t, chunk.Text[e.LocalStart:e.LocalEnd], fullText[e.GlobalStart:e.GlobalEnd], "Offset round trip for %q", e.Text)
			assert.Equal(t, e.Text, fullText[e.GlobalStart:e.GlobalEnd])
			assert.True(t, utf8.ValidString(fullText[e.GlobalStart:e.GlobalEnd]))
		}

		amsterdam, _ := store.Get(2)
		assert.Equal(t, 41, amsterdam.GlobalStart)
		chars := amsterdam.InChars(chunks[1].Text, fullText)
		assert.Equal(t, 39, chars.GlobalStart)
		assert.Equal(t, 48, chars.GlobalEnd)
		assert.Equal(t, "Amsterdam", string([]rune(fullText)[chars.GlobalStart:chars.GlobalEnd]))
	})

	t.Run("Unknown chunk id is an integrity violation", func(t *testing.T) {
		chunks := testChunks()
		store := model.NewEntityStore(model.Entity{Text: "x", LocalStart: 0, LocalEnd: 1, ChunkID: model.ChunkID(9)})
		_, offsets := Combine(chunks)

		assert.ErrorIs(t, Project(store, chunks, offsets), helper.ErrIntegrityViolation)
	})

	t.Run("Span outside chunk is an integrity violation", func(t *testing.T) {
		chunks := testChunks()
		store := model.NewEntityStore(model.Entity{Text: "x", LocalStart: 20, LocalEnd: 200, ChunkID: chunks[0].ID})
		_, offsets := Combine(chunks)

		assert.ErrorIs(t, Project(store, chunks, offsets), helper.ErrIntegrityViolation)
	})
}

func TestBuildLineTable(t *testing.T) {
	t.Run("Splits units into sentences with running offsets", func(t *testing.T) {
		units := []model.LineUnit{
			{Text: "Ik ben geboren. In Amsterdam", Timestamp: &model.TimeRange{Start: 0, End: 5}},
			{Text: "Echt waar?"},
		}

		table := BuildLineTable(units)
		require.Len(t, table, 3)
		assert.Equal(t, Line{Start: 0, End: 15, Timestamp: model.TimeRange{Start: 0, End: 5}, Text: "Ik ben geboren."}, table[0])
		assert.Equal(t, " In Amsterdam.", table[1].Text, "Missing end punctuation should be added")
		assert.Equal(t, 15, table[1].Start)
		assert.Equal(t, table[1].End, table[2].Start)
		assert.Equal(t, model.TimeRange{}, table[2].Timestamp)
	})

	t.Run("Skips empty pieces", func(t *testing.T) {
		table := BuildLineTable([]model.LineUnit{{Text: "Ja... "}, {Text: "   "}})

		require.Len(t, table, 1)
		assert.Equal(t, "Ja.", table[0].Text)
	})
}

func TestLocateLine(t *testing.T) {
	table := BuildLineTable([]model.LineUnit{{Text: "Een. Twee. Drie."}})

	t.Run("Finds the containing line", func(t *testing.T) {
		for i, line := range table {
			ref := LocateLine(table, line.Start)
			require.NotNil(t, ref)
			assert.Equal(t, i, ref.Index)
			assert.Equal(t, line.Text, ref.Text)

			ref = LocateLine(table, line.End-1)
			require.NotNil(t, ref)
			assert.Equal(t, i, ref.Index)
		}
	})

	t.Run("Offset outside all lines is unresolved", func(t *testing.T) {
		assert.Nil(t, LocateLine(table, table[len(table)-1].End+10))
		assert.Nil(t, LocateLine(table, -1))
		assert.Nil(t, LocateLine(LineTable{}, 0))
	})

	t.Run("Unresolved entities get null line fields", func(t *testing.T) {
		store := model.NewEntityStore(model.Entity{Text: "x", GlobalStart: 1000, GlobalEnd: 1001})
		ResolveLines(store, table)

		e, _ := store.Get(0)
		assert.Nil(t, e.Line)
	})
}

func TestLocateChunk(t *testing.T) {
	chunks := testChunks()

	t.Run("Finds the chunk for a global offset", func(t *testing.T) {
		second := len(chunks[0].Text) + len(Separator)

		ref, ok := LocateChunk(chunks, second+3)
		require.True(t, ok)
		assert.Equal(t, chunks[1].ID, ref.ID)
		assert.Equal(t, 1, ref.Index)
		assert.Equal(t, second, ref.Offset)
		assert.Equal(t, chunks[1].TimeRange, ref.TimeRange)
	})

	t.Run("Offsets after multi byte text", func(t *testing.T) {
		chunks := dutchChunks()

		ref, ok := LocateChunk(chunks, 41)
		require.True(t, ok)
		assert.Equal(t, chunks[1].ID, ref.ID)
		assert.Equal(t, 24, ref.Offset)
		assert.Equal(t, "Amsterdam", chunks[1].Text[41-ref.Offset:50-ref.Offset])
	})

	t.Run("Separator and out of range offsets belong to no chunk", func(t *testing.T) {
		_, ok := LocateChunk(chunks, len(chunks[0].Text))
		assert.False(t, ok)

		_, ok = LocateChunk(chunks, 10000)
		assert.False(t, ok)
	})
}

func TestProjectInterview(t *testing.T) {
	t.Run("Projects and resolves lines", func(t *testing.T) {
		chunks := testChunks()
		interview := model.NewInterview("test", "")
		interview.Chunks = chunks
		interview.Lines = []model.LineUnit{{Text: chunks[0].Text}, {Text: chunks[1].Text}}
		interview.Entities.Append(entityIn(chunks[1], "Jordaan", model.LabelLocation))

		require.NoError(t, ProjectInterview(interview))

		e, _ := interview.Entities.Get(0)
		assert.Equal(t, "Jordaan", interview.FullText[e.GlobalStart:e.GlobalEnd])
		require.NotNil(t, e.Line)
		assert.Equal(t, 1, e.Line.Index)
	})
}
