package model

import (
	"encoding/json"
	"testing"

	"github.com/siherrmann/memories/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityJSON(t *testing.T) {
	t.Run("Writes null line fields when unresolved", func(t *testing.T) {
		entity := Entity{Text: "Amsterdam", Label: LabelLocation, LocalStart: 3, LocalEnd: 12, ChunkID: ChunkID(0)}

		b, err := json.Marshal(entity)
		require.NoError(t, err)

		var fields map[string]interface{}
		require.NoError(t, json.Unmarshal(b, &fields))
		assert.Contains(t, fields, "line_index")
		assert.Nil(t, fields["line_index"])
		assert.Nil(t, fields["line_timestamp"])
		assert.Nil(t, fields["line_text"])
		assert.NotContains(t, fields, "links")
		assert.Equal(t, float64(3), fields["start"])
	})

	t.Run("Round trips line and links", func(t *testing.T) {
		entity := Entity{
			Text:        "Amsterdam",
			Label:       LabelLocation,
			LocalStart:  3,
			LocalEnd:    12,
			ChunkID:     ChunkID(1),
			GlobalStart: 20,
			GlobalEnd:   29,
			Timestamps:  TimeRange{Start: 30, End: 60},
			Score:       0.95,
			Links:       Links{LinkWikidata: "http://www.wikidata.org/entity/Q727"},
			Line:        &LineRef{Index: 2, Timestamp: TimeRange{Start: 31, End: 33}, Text: "In Amsterdam."},
		}

		b, err := json.Marshal(entity)
		require.NoError(t, err)

		var decoded Entity
		require.NoError(t, json.Unmarshal(b, &decoded))
		assert.Equal(t, entity, decoded)
	})
}

func TestEntityValidate(t *testing.T) {
	tests := []struct {
		name  string
		start int
		end   int
		valid bool
	}{
		{"Span inside chunk", 0, 5, true},
		{"Span ending at chunk end", 5, 10, true},
		{"Empty span", 5, 5, false},
		{"Negative start", -1, 3, false},
		{"Span past chunk end", 8, 11, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Entity{Text: "x", LocalStart: tt.start, LocalEnd: tt.end}.Validate(10)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, helper.ErrMalformedInput)
			}
		})
	}
}

func TestEntityCheckSpan(t *testing.T) {
	t.Run("Accepts preserved span", func(t *testing.T) {
		assert.NoError(t, Entity{LocalStart: 2, LocalEnd: 5, GlobalStart: 12, GlobalEnd: 15}.CheckSpan())
	})

	t.Run("Rejects changed span", func(t *testing.T) {
		err := Entity{LocalStart: 2, LocalEnd: 5, GlobalStart: 12, GlobalEnd: 16}.CheckSpan()
		assert.ErrorIs(t, err, helper.ErrIntegrityViolation)
	})
}

func TestEntitySetLink(t *testing.T) {
	t.Run("Ignores empty values", func(t *testing.T) {
		var e Entity
		e.SetLink(LinkWikidata, "")
		assert.Nil(t, e.Links)

		e.SetLink(LinkWikidata, "Q727")
		assert.Equal(t, "Q727", e.Links.Get(LinkWikidata))
	})
}

func TestLinks(t *testing.T) {
	t.Run("Keys are sorted and skip empty values", func(t *testing.T) {
		links := Links{LinkWikidata: "Q1", LinkAdamlink: "A1", LinkPrefLabel: ""}
		assert.Equal(t, []string{LinkAdamlink, LinkWikidata}, links.Keys())
	})

	t.Run("Nil links read as empty", func(t *testing.T) {
		var links Links
		assert.Equal(t, "", links.Get(LinkWikidata))
		assert.Empty(t, links.Keys())
	})

	t.Run("Value and Scan round trip", func(t *testing.T) {
		links := Links{LinkWikidata: "Q1"}
		value, err := links.Value()
		require.NoError(t, err)

		var scanned Links
		require.NoError(t, scanned.Scan(value))
		assert.Equal(t, links, scanned)
	})

	t.Run("Scan rejects non byte values", func(t *testing.T) {
		var scanned Links
		assert.Error(t, scanned.Scan("text"))
	})
}

func TestEntityOffsets(t *testing.T) {
	chunkText := "Daarna bij café Amsterdam."
	fullText := "Wij woonden in België.\n" + chunkText + "\n"
	entity := Entity{Text: "Amsterdam", LocalStart: 17, LocalEnd: 26, GlobalStart: 41, GlobalEnd: 50}

	t.Run("Counts offsets in characters", func(t *testing.T) {
		chars := entity.InChars(chunkText, fullText)
		assert.Equal(t, 16, chars.LocalStart)
		assert.Equal(t, 25, chars.LocalEnd)
		assert.Equal(t, 39, chars.GlobalStart)
		assert.Equal(t, 48, chars.GlobalEnd)
	})

	t.Run("Restores byte offsets", func(t *testing.T) {
		restored, err := entity.InChars(chunkText, fullText).InBytes(chunkText, fullText)
		require.NoError(t, err)
		assert.Equal(t, entity, restored)
		assert.Equal(t, "Amsterdam", fullText[restored.GlobalStart:restored.GlobalEnd])
	})

	t.Run("Rejects offsets beyond the text", func(t *testing.T) {
		_, err := Entity{Text: "Amsterdam", LocalStart: 16, LocalEnd: 60}.InBytes(chunkText, fullText)
		assert.ErrorIs(t, err, helper.ErrMalformedInput)
	})
}
