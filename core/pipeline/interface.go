package pipeline

import (
	"context"
	"encoding/json"

	"github.com/siherrmann/memories/model"
)

// ChunkFunc segments a raw transcription into chunks
// It also returns the line units the line table is built from
type ChunkFunc func(raw json.RawMessage) (*Segmentation, error)

// Segmentation is the result of a ChunkFunc
type Segmentation struct {
	Chunks []model.Chunk
	Lines  []model.LineUnit
	// Problems holds per-unit errors of units that were skipped
	Problems []error
}

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// RawEntity is an entity mention as returned by an extractor.
// Start and End are byte offsets into the text the extractor was given.
type RawEntity struct {
	Text  string
	Label string
	Start int
	End   int
	Score float64
}

// EntityExtractFunc extracts entities of the given labels from text
// Hits scoring below threshold are not returned
type EntityExtractFunc func(text string, labels []string, threshold float64) ([]RawEntity, error)

// LocationMatch is a gazetteer entry matched for a location mention
type LocationMatch struct {
	PrefLabel string
	Wikidata  string
	Adamlink  string
	Longitude string
	Latitude  string
}

// Found reports whether the match holds any identifier
func (m LocationMatch) Found() bool {
	return m.Wikidata != "" || m.Adamlink != "" || m.PrefLabel != ""
}

// Links converts the match into link attributes
func (m LocationMatch) Links() model.Links {
	links := model.Links{}
	for k, v := range map[string]string{
		model.LinkPrefLabel: m.PrefLabel,
		model.LinkWikidata:  m.Wikidata,
		model.LinkAdamlink:  m.Adamlink,
		model.LinkLongitude: m.Longitude,
		model.LinkLatitude:  m.Latitude,
	} {
		if v != "" {
			links[k] = v
		}
	}
	return links
}

// LocationLookupFunc finds a gazetteer entry for a location mention
// No match is a zero LocationMatch and a nil error
type LocationLookupFunc func(text string) (LocationMatch, error)

// SubjectLookupFunc finds thesaurus subject uris for a mention
type SubjectLookupFunc func(ctx context.Context, text string) ([]string, error)

// TopicExtractFunc extracts topic keywords from a chunk text
type TopicExtractFunc func(ctx context.Context, text string) ([]string, error)

// LocationExtractFunc suggests locations for a chunk text given the locations already found in it
type LocationExtractFunc func(ctx context.Context, text string, known []string) ([]model.LLMLocation, error)

// TranscribeFunc transcribes an audio file into timed, diarized word segments
type TranscribeFunc func(ctx context.Context, audioPath string) ([]model.WordUnit, error)
