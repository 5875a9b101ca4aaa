package annotation

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/siherrmann/memories/core/pipeline"
	"github.com/siherrmann/memories/helper"
	"github.com/siherrmann/memories/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labelsRecord(id string, start, end int, text string, label string) model.ReviewRecord {
	return model.NewLabelsRecord(id, model.Entity{Text: text, Label: label, GlobalStart: start, GlobalEnd: end, Score: 1})
}

func TestGroupRegions(t *testing.T) {
	t.Run("Records are merged by region id", func(t *testing.T) {
		records := []model.ReviewRecord{
			model.NewTextareaRecord("a", model.LinkWikidata, testWikidataAmsterdam),
			labelsRecord("a", 18, 27, "Amsterdam", model.LabelLocation),
			labelsRecord("b", 44, 50, "bakker", model.LabelOccupation),
			model.NewTextareaRecord("b", model.LinkGTAASubject, testSubjectBakker, "http://data.beeldengeluid.nl/gtaa/1"),
			model.NewTextareaRecord("a", model.LinkPrefLabel, "Amsterdam"),
		}

		entities, problems := GroupRegions(records)
		assert.Empty(t, problems)
		require.Len(t, entities, 2)

		assert.Equal(t, "Amsterdam", entities[0].Text)
		assert.Equal(t, model.LabelLocation, entities[0].Label)
		assert.Equal(t, 18, entities[0].GlobalStart)
		assert.Equal(t, 27, entities[0].GlobalEnd)
		assert.Equal(t, model.Links{model.LinkWikidata: testWikidataAmsterdam, model.LinkPrefLabel: "Amsterdam"}, entities[0].Links)

		assert.Equal(t, "bakker", entities[1].Text)
		assert.Equal(t, []string{testSubjectBakker, "http://data.beeldengeluid.nl/gtaa/1"}, entities[1].SubjectURIs)
		assert.Nil(t, entities[1].Links)
	})

	t.Run("Region without labels record is reported", func(t *testing.T) {
		records := []model.ReviewRecord{
			labelsRecord("a", 18, 27, "Amsterdam", model.LabelLocation),
			model.NewTextareaRecord("orphan", model.LinkWikidata, testWikidataAmsterdam),
		}

		entities, problems := GroupRegions(records)
		require.Len(t, entities, 1)
		require.Len(t, problems, 1)
		assert.ErrorIs(t, problems[0], helper.ErrMalformedInput)
		assert.Contains(t, problems[0].Error(), "orphan")
	})

	t.Run("Labels record without span or label is reported", func(t *testing.T) {
		noSpan := labelsRecord("a", 18, 27, "Amsterdam", model.LabelLocation)
		noSpan.Value.Start = nil
		noLabel := labelsRecord("b", 44, 50, "bakker", model.LabelOccupation)
		noLabel.Value.Labels = nil

		entities, problems := GroupRegions([]model.ReviewRecord{
			noSpan,
			model.NewTextareaRecord("a", model.LinkWikidata, testWikidataAmsterdam),
			noLabel,
		})
		assert.Empty(t, entities)
		require.Len(t, problems, 2, "The textarea of an invalid region is no orphan")
		for _, problem := range problems {
			assert.ErrorIs(t, problem, helper.ErrMalformedInput)
		}
	})

	t.Run("Missing score defaults to reviewed score", func(t *testing.T) {
		record := labelsRecord("a", 18, 27, "Amsterdam", model.LabelLocation)
		record.Value.Score = nil

		entities, problems := GroupRegions([]model.ReviewRecord{record})
		assert.Empty(t, problems)
		require.Len(t, entities, 1)
		assert.Equal(t, 1.0, entities[0].Score)
	})
}

func TestImportCorrection(t *testing.T) {
	t.Run("Unchanged export reproduces the entities", func(t *testing.T) {
		interview := newTestInterview(t)
		records := ExportRegions(interview)

		corrected, problems, err := ImportCorrection(interview, []model.ReviewResult{{Result: records}})
		require.NoError(t, err)
		assert.Empty(t, problems)
		assert.Equal(t, interview.Entities.All(), corrected.Entities.All())
	})

	t.Run("Chunk, offsets and timestamps are derived from the global span", func(t *testing.T) {
		interview := newTestInterview(t)
		start := strings.Index(interview.FullText, "vader")
		record := labelsRecord("a", start, start+len("vader"), "", model.LabelPerson)

		corrected, problems, err := ImportCorrection(interview, []model.ReviewResult{{Result: []model.ReviewRecord{record}}})
		require.NoError(t, err)
		assert.Empty(t, problems)
		require.Equal(t, 1, corrected.Entities.Len())

		e := corrected.Entities.All()[0]
		chunk := interview.Chunks[1]
		assert.Equal(t, chunk.ID, e.ChunkID)
		assert.Equal(t, "vader", e.Text)
		assert.Equal(t, "vader", chunk.Text[e.LocalStart:e.LocalEnd])
		assert.Equal(t, chunk.TimeRange, e.Timestamps)
		require.NotNil(t, e.Line)
		assert.Equal(t, "Mijn vader was bakker in de Jordaan.", e.Line.Text)
	})

	t.Run("Input interview is not changed", func(t *testing.T) {
		interview := newTestInterview(t)
		before := interview.Entities.All()

		corrected, _, err := ImportCorrection(interview, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, corrected.Entities.Len())
		assert.Equal(t, before, corrected.OriginalEntities)
		assert.Equal(t, before, interview.Entities.All())
		assert.Nil(t, interview.OriginalEntities)
	})

	t.Run("Unplaceable entities are reported and left out", func(t *testing.T) {
		interview := newTestInterview(t)
		separator := strings.Index(interview.FullText, "\n")
		crossing := strings.Index(interview.FullText, "Amsterdam")

		records := []model.ReviewRecord{
			labelsRecord("outside", 1000, 1005, "", model.LabelLocation),
			labelsRecord("separator", separator, separator+1, "", model.LabelLocation),
			labelsRecord("crossing", crossing, separator+5, "", model.LabelLocation),
			labelsRecord("ok", crossing, crossing+len("Amsterdam"), "Amsterdam", model.LabelLocation),
		}

		corrected, problems, err := ImportCorrection(interview, []model.ReviewResult{{Result: records}})
		require.NoError(t, err)
		require.Len(t, problems, 3)
		assert.ErrorIs(t, problems[0], helper.ErrUnresolvedReference)
		assert.ErrorIs(t, problems[1], helper.ErrUnresolvedReference)
		assert.ErrorIs(t, problems[2], helper.ErrMalformedInput)
		assert.Equal(t, 1, corrected.Entities.Len())
	})

	t.Run("Multi byte text round trips with character offsets", func(t *testing.T) {
		interview := newDutchInterview(t, 5, "Wij woonden in België.", "Daarna bij café Amsterdam.")
		require.Len(t, interview.Chunks, 2)
		amsterdam := entityIn(interview.Chunks[1], "Amsterdam", model.LabelLocation)
		amsterdam.Links = model.Links{model.LinkPrefLabel: "Amsterdam"}
		interview.Entities = model.NewEntityStore(
			entityIn(interview.Chunks[0], "België", model.LabelLocation),
			amsterdam,
		)
		require.NoError(t, pipeline.ProjectInterview(interview))

		records := ExportRegions(interview)
		require.Len(t, records, 3)
		assert.Equal(t, 15, *records[0].Value.Start)
		assert.Equal(t, 21, *records[0].Value.End)
		assert.Equal(t, 39, *records[1].Value.Start)
		assert.Equal(t, 48, *records[1].Value.End)

		corrected, problems, err := ImportCorrection(interview, []model.ReviewResult{{Result: records}})
		require.NoError(t, err)
		assert.Empty(t, problems)
		assert.Equal(t, interview.Entities.All(), corrected.Entities.All())

		for _, e := range corrected.Entities.All() {
			chunk, ok := corrected.ChunkByID(e.ChunkID)
			require.True(t, ok)
			assert.True(t, utf8.ValidString(e.Text), "Entity text %q", e.Text)
			assert.Equal(t, chunk.Text[e.LocalStart:e.LocalEnd], corrected.FullText[e.GlobalStart:e.GlobalEnd])
			assert.Equal(t, e.Text, corrected.FullText[e.GlobalStart:e.GlobalEnd])
		}
	})

	t.Run("Character span selects the reviewed text", func(t *testing.T) {
		interview := newDutchInterview(t, 100, "Wij woonden in België bij café Amsterdam.")
		require.NoError(t, pipeline.ProjectInterview(interview))
		record := labelsRecord("a", 31, 40, "Amsterdam", model.LabelLocation)

		corrected, problems, err := ImportCorrection(interview, []model.ReviewResult{{Result: []model.ReviewRecord{record}}})
		require.NoError(t, err)
		assert.Empty(t, problems)
		require.Equal(t, 1, corrected.Entities.Len())

		e := corrected.Entities.All()[0]
		assert.Equal(t, "Amsterdam", e.Text)
		assert.True(t, utf8.ValidString(e.Text))
		assert.Equal(t, 33, e.GlobalStart)
		assert.Equal(t, 42, e.GlobalEnd)
		assert.Equal(t, "Amsterdam", interview.Chunks[0].Text[e.LocalStart:e.LocalEnd])
	})

	t.Run("Character span beyond the text is unresolved", func(t *testing.T) {
		interview := newDutchInterview(t, 100, "Wij woonden in België bij café Amsterdam.")
		require.NoError(t, pipeline.ProjectInterview(interview))
		record := labelsRecord("a", 40, 43, "", model.LabelLocation)

		corrected, problems, err := ImportCorrection(interview, []model.ReviewResult{{Result: []model.ReviewRecord{record}}})
		require.NoError(t, err)
		require.Len(t, problems, 1)
		assert.ErrorIs(t, problems[0], helper.ErrUnresolvedReference)
		assert.Equal(t, 0, corrected.Entities.Len())
	})

	t.Run("Broken concatenation is an integrity violation", func(t *testing.T) {
		interview := newTestInterview(t)
		interview.FullText = "changed"

		_, _, err := ImportCorrection(interview, nil)
		assert.ErrorIs(t, err, helper.ErrIntegrityViolation)
	})
}

func TestImportTask(t *testing.T) {
	t.Run("Annotations are passed through", func(t *testing.T) {
		interview := newTestInterview(t)
		task := model.ReviewTask{
			ID:          7,
			Data:        model.FileData{Text: interview.FullText},
			Annotations: []model.ReviewResult{{Result: ExportRegions(interview)}},
		}

		corrected, problems, err := ImportTask(interview, task)
		require.NoError(t, err)
		assert.Empty(t, problems)
		assert.Equal(t, 3, corrected.Entities.Len())

		var annotations []model.ReviewResult
		require.NoError(t, json.Unmarshal(corrected.ReviewAnnotations, &annotations))
		assert.Equal(t, task.Annotations, annotations)
		assert.Nil(t, interview.ReviewAnnotations)
	})
}

func TestExportRegions(t *testing.T) {
	t.Run("One labels record per entity with its link records", func(t *testing.T) {
		interview := newTestInterview(t)

		records := ExportRegions(interview)
		require.Len(t, records, 8, "3 labels, 3 Amsterdam links, 1 subject and 1 Jordaan link")

		assert.Equal(t, model.ReviewTypeLabels, records[0].Type)
		for _, record := range records[1:4] {
			assert.Equal(t, records[0].ID, record.ID)
			assert.Equal(t, model.ReviewTypeTextarea, record.Type)
		}
		text, ok := records[0].TextString()
		require.True(t, ok)
		assert.Equal(t, "Amsterdam", text)

		assert.Equal(t, model.ReviewTypeLabels, records[4].Type)
		assert.NotEqual(t, records[0].ID, records[4].ID)
		assert.Equal(t, model.LinkGTAASubject, records[5].FromName)
		uris, ok := records[5].TextList()
		require.True(t, ok)
		assert.Equal(t, []string{testSubjectBakker}, uris)
	})
}
