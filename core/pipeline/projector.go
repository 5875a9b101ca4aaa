package pipeline

import (
	"sort"
	"strings"

	"github.com/siherrmann/memories/helper"
	"github.com/siherrmann/memories/model"
)

// Separator is appended after every chunk text in the full text.
const Separator = "\n"

// OffsetTable maps a chunk id to the byte offset of its text in the full text.
type OffsetTable map[string]int

// Combine concatenates the chunk texts, each followed by Separator.
func Combine(chunks []model.Chunk) (string, OffsetTable) {
	var b strings.Builder
	offsets := make(OffsetTable, len(chunks))
	for _, chunk := range chunks {
		offsets[chunk.ID] = b.Len()
		b.WriteString(chunk.Text)
		b.WriteString(Separator)
	}
	return b.String(), offsets
}

// Project sets the global offsets of every entity in the store.
// An unknown chunk id or a span that does not survive the translation is an IntegrityViolation.
func Project(store *model.EntityStore, chunks []model.Chunk, offsets OffsetTable) error {
	lengths := make(map[string]int, len(chunks))
	for _, chunk := range chunks {
		lengths[chunk.ID] = len(chunk.Text)
	}

	return store.Range(func(ref model.EntityRef, e *model.Entity) error {
		offset, ok := offsets[e.ChunkID]
		if !ok {
			return helper.IntegrityViolation("entity %d (%q) references unknown chunk %q", ref, e.Text, e.ChunkID)
		}
		if err := e.Validate(lengths[e.ChunkID]); err != nil {
			return helper.IntegrityViolation("entity %d: %v", ref, err)
		}

		e.GlobalStart = e.LocalStart + offset
		e.GlobalEnd = e.LocalEnd + offset
		return e.CheckSpan()
	})
}

// Line is one entry of a line table.
type Line struct {
	Start     int
	End       int
	Timestamp model.TimeRange
	Text      string
}

// LineTable is a monotone table of transcript lines with their own running offsets.
type LineTable []Line

// BuildLineTable splits every unit into sentences and assigns running offsets.
// Sentences keep their punctuation, a sentence without end punctuation gets a ".".
// Units without timestamp get (0,0).
func BuildLineTable(units []model.LineUnit) LineTable {
	table := LineTable{}
	offset := 0
	for _, unit := range units {
		var timestamp model.TimeRange
		if unit.Timestamp != nil {
			timestamp = *unit.Timestamp
		}

		for _, sentence := range splitSentences(unit.Text) {
			table = append(table, Line{
				Start:     offset,
				End:       offset + len(sentence),
				Timestamp: timestamp,
				Text:      sentence,
			})
			offset += len(sentence)
		}
	}
	return table
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		if !isSentenceEnd(text[i]) {
			continue
		}
		if piece := text[start : i+1]; strings.TrimSpace(piece[:len(piece)-1]) != "" {
			sentences = append(sentences, piece)
		}
		start = i + 1
	}

	if rest := text[start:]; strings.TrimSpace(rest) != "" {
		if !endsWithPunctuation(rest) {
			rest += "."
		}
		sentences = append(sentences, rest)
	}
	return sentences
}

func isSentenceEnd(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func endsWithPunctuation(s string) bool {
	if s == "" {
		return false
	}
	return strings.ContainsRune(".,;:!?\"')]}", rune(s[len(s)-1]))
}

// LocateLine returns the line containing the global offset, or nil when no line does.
func LocateLine(table LineTable, globalStart int) *model.LineRef {
	i := sort.Search(len(table), func(i int) bool { return table[i].End > globalStart })
	if i == len(table) || table[i].Start > globalStart {
		return nil
	}
	return &model.LineRef{Index: i, Timestamp: table[i].Timestamp, Text: table[i].Text}
}

// ResolveLines sets the line reference of every entity. Unmatched entities get nil.
func ResolveLines(store *model.EntityStore, table LineTable) {
	_ = store.Range(func(_ model.EntityRef, e *model.Entity) error {
		e.Line = LocateLine(table, e.GlobalStart)
		return nil
	})
}

// ChunkRef is the chunk a global offset falls into.
type ChunkRef struct {
	ID        string
	Index     int
	Offset    int
	TimeRange model.TimeRange
	Length    int
}

// LocateChunk finds the chunk whose text contains the global offset.
// Offsets on a separator belong to no chunk.
func LocateChunk(chunks []model.Chunk, globalStart int) (ChunkRef, bool) {
	offset := 0
	for i, chunk := range chunks {
		if offset <= globalStart && globalStart < offset+len(chunk.Text) {
			return ChunkRef{ID: chunk.ID, Index: i, Offset: offset, TimeRange: chunk.TimeRange, Length: len(chunk.Text)}, true
		}
		offset += len(chunk.Text) + len(Separator)
	}
	return ChunkRef{}, false
}

// CheckConcatenation verifies that the full text is the concatenation of the chunk texts.
func CheckConcatenation(fullText string, chunks []model.Chunk) error {
	expected, _ := Combine(chunks)
	if expected != fullText {
		return helper.IntegrityViolation("full text does not match the concatenation of %d chunks", len(chunks))
	}
	return nil
}

// ProjectInterview combines the interview's chunks, projects its entities
// and resolves their lines.
func ProjectInterview(interview *model.Interview) error {
	fullText, offsets := Combine(interview.Chunks)
	if err := Project(interview.Entities, interview.Chunks, offsets); err != nil {
		return err
	}
	interview.FullText = fullText
	ResolveLines(interview.Entities, BuildLineTable(interview.Lines))
	return nil
}
