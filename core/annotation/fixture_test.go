package annotation

import (
	"strings"
	"testing"

	"github.com/siherrmann/memories/core/pipeline"
	"github.com/siherrmann/memories/model"
	"github.com/stretchr/testify/require"
)

const (
	testWikidataAmsterdam = "http://www.wikidata.org/entity/Q727"
	testAdamlinkAmsterdam = "https://adamlink.nl/geo/place/amsterdam"
	testAdamlinkJordaan   = "https://adamlink.nl/geo/district/jordaan"
	testSubjectBakker     = "http://data.beeldengeluid.nl/gtaa/24053"
)

func entityIn(chunk model.Chunk, text string, label string) model.Entity {
	start := strings.Index(chunk.Text, text)
	return model.Entity{
		Text:       text,
		Label:      label,
		LocalStart: start,
		LocalEnd:   start + len(text),
		ChunkID:    chunk.ID,
		Timestamps: chunk.TimeRange,
		Score:      0.95,
	}
}

// newTestInterview returns a projected interview with two chunks and three entities.
func newTestInterview(t *testing.T) *model.Interview {
	t.Helper()

	lines := []model.LineUnit{
		{Text: "Ik ben geboren in Amsterdam.", Timestamp: &model.TimeRange{Start: 0, End: 4.5}},
		{Text: "Mijn vader was bakker in de Jordaan.", Timestamp: &model.TimeRange{Start: 4.5, End: 9}},
	}
	chunks := pipeline.SegmentLines(lines, 6)
	require.Len(t, chunks, 2)

	amsterdam := entityIn(chunks[0], "Amsterdam", model.LabelLocation)
	amsterdam.Links = model.Links{
		model.LinkWikidata:  testWikidataAmsterdam,
		model.LinkAdamlink:  testAdamlinkAmsterdam,
		model.LinkPrefLabel: "Amsterdam",
	}
	bakker := entityIn(chunks[1], "bakker", model.LabelOccupation)
	bakker.SubjectURIs = []string{testSubjectBakker}
	jordaan := entityIn(chunks[1], "Jordaan", model.LabelLocation)
	jordaan.Links = model.Links{model.LinkAdamlink: testAdamlinkJordaan}

	interview := model.NewInterview("interview-1", "")
	interview.Lines = lines
	interview.Chunks = chunks
	interview.Entities = model.NewEntityStore(amsterdam, bakker, jordaan)
	interview.Topics = []model.Topic{{Label: "familie", Count: 2}}
	require.NoError(t, pipeline.ProjectInterview(interview))
	return interview
}

// newDutchInterview returns an unprojected interview with one timed line per text.
func newDutchInterview(t *testing.T, maxWords int, texts ...string) *model.Interview {
	t.Helper()

	lines := make([]model.LineUnit, len(texts))
	for i, text := range texts {
		lines[i] = model.LineUnit{Text: text, Timestamp: &model.TimeRange{Start: float64(i) * 4, End: float64(i+1) * 4}}
	}

	interview := model.NewInterview("interview-nl", "")
	interview.Lines = lines
	interview.Chunks = pipeline.SegmentLines(lines, maxWords)
	return interview
}
