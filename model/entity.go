package model

import (
	"encoding/json"

	"github.com/siherrmann/memories/helper"
)

// Entity labels requested from the extractor by default.
const (
	LabelPerson     = "Person"
	LabelDate       = "Date"
	LabelLocation   = "Location"
	LabelFood       = "Food"
	LabelOccupation = "Occupation"
)

// DefaultLabels lists the labels extracted when none are configured.
var DefaultLabels = []string{LabelPerson, LabelDate, LabelLocation, LabelFood, LabelOccupation}

// LineRef points to the transcript line an entity starts in.
type LineRef struct {
	Index     int
	Timestamp TimeRange
	Text      string
}

// Entity is a named entity mention. Local offsets are byte offsets into the
// owning chunk's text, global offsets are byte offsets into the interview's full text.
// Global offsets are only valid after offset projection ran.
// Persisted and exported entities count offsets in characters, see InChars.
type Entity struct {
	Text        string    `json:"text"`
	Label       string    `json:"label"`
	LocalStart  int       `json:"start"`
	LocalEnd    int       `json:"end"`
	ChunkID     string    `json:"chunk_id"`
	GlobalStart int       `json:"global_start"`
	GlobalEnd   int       `json:"global_end"`
	Timestamps  TimeRange `json:"timestamps"`
	Score       float64   `json:"score"`
	Links       Links     `json:"links,omitempty"`
	SubjectURIs []string  `json:"gtaa_subject,omitempty"`
	// Line is nil while the entity's line is unresolved.
	Line *LineRef `json:"-"`
}

type entityAlias Entity

type entityJSON struct {
	entityAlias
	LineIndex     *int       `json:"line_index"`
	LineTimestamp *TimeRange `json:"line_timestamp"`
	LineText      *string    `json:"line_text"`
}

// MarshalJSON flattens the line reference, writing null fields when unresolved.
func (e Entity) MarshalJSON() ([]byte, error) {
	out := entityJSON{entityAlias: entityAlias(e)}
	if e.Line != nil {
		out.LineIndex = &e.Line.Index
		out.LineTimestamp = &e.Line.Timestamp
		out.LineText = &e.Line.Text
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the line reference when line_index is set.
func (e *Entity) UnmarshalJSON(b []byte) error {
	var in entityJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*e = Entity(in.entityAlias)
	if in.LineIndex != nil {
		e.Line = &LineRef{Index: *in.LineIndex}
		if in.LineTimestamp != nil {
			e.Line.Timestamp = *in.LineTimestamp
		}
		if in.LineText != nil {
			e.Line.Text = *in.LineText
		}
	}
	return nil
}

// Validate checks the local span against the owning chunk's text length.
func (e Entity) Validate(chunkTextLen int) error {
	if e.LocalStart < 0 || e.LocalStart >= e.LocalEnd || e.LocalEnd > chunkTextLen {
		return helper.MalformedInput("entity %q has span [%d,%d) outside chunk %s of length %d", e.Text, e.LocalStart, e.LocalEnd, e.ChunkID, chunkTextLen)
	}
	return nil
}

// CheckSpan verifies that projection preserved the span length.
func (e Entity) CheckSpan() error {
	if e.GlobalEnd-e.GlobalStart != e.LocalEnd-e.LocalStart {
		return helper.IntegrityViolation("entity %q global span [%d,%d) does not match local span [%d,%d)", e.Text, e.GlobalStart, e.GlobalEnd, e.LocalStart, e.LocalEnd)
	}
	return nil
}

// SetLink sets a link attribute, ignoring empty values.
func (e *Entity) SetLink(key, value string) {
	if value == "" {
		return
	}
	if e.Links == nil {
		e.Links = Links{}
	}
	e.Links[key] = value
}

// InChars returns a copy of the entity with local offsets counted in characters
// of chunkText and global offsets counted in characters of fullText.
func (e Entity) InChars(chunkText, fullText string) Entity {
	e.LocalStart, e.LocalEnd = CharOffset(chunkText, e.LocalStart), CharOffset(chunkText, e.LocalEnd)
	e.GlobalStart, e.GlobalEnd = CharOffset(fullText, e.GlobalStart), CharOffset(fullText, e.GlobalEnd)
	return e
}

// InBytes reverses InChars. Offsets beyond their text are malformed.
func (e Entity) InBytes(chunkText, fullText string) (Entity, error) {
	var ok [4]bool
	e.LocalStart, ok[0] = ByteOffset(chunkText, e.LocalStart)
	e.LocalEnd, ok[1] = ByteOffset(chunkText, e.LocalEnd)
	e.GlobalStart, ok[2] = ByteOffset(fullText, e.GlobalStart)
	e.GlobalEnd, ok[3] = ByteOffset(fullText, e.GlobalEnd)
	for _, o := range ok {
		if !o {
			return Entity{}, helper.MalformedInput("entity %q has character offsets outside its text", e.Text)
		}
	}
	return e, nil
}
