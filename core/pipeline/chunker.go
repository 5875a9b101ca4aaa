package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/siherrmann/memories/model"
)

// NewChunker returns the chunker for the configured segment mode
func NewChunker(config model.Configuration) (ChunkFunc, error) {
	switch config.SegmentMode {
	case model.LineMode:
		return LineChunker(config.MaxChunkSize), nil
	case model.WordMode:
		return WordChunker(float64(config.MaxChunkSize), config.KeepSameSpeaker), nil
	default:
		return nil, fmt.Errorf("unknown segment mode %q", config.SegmentMode)
	}
}

// LineChunker creates a chunker that groups timed lines by word count
func LineChunker(maxWords int) ChunkFunc {
	return func(raw json.RawMessage) (*Segmentation, error) {
		if maxWords <= 0 {
			return nil, fmt.Errorf("max words per chunk must be positive")
		}

		lines, problems, err := model.DecodeLineUnits(raw)
		if err != nil {
			return nil, err
		}

		return &Segmentation{
			Chunks:   SegmentLines(lines, maxWords),
			Lines:    lines,
			Problems: problems,
		}, nil
	}
}

// WordChunker creates a chunker that groups timed words by duration.
// With keepSameSpeaker a speaker change also closes the chunk.
func WordChunker(maxDuration float64, keepSameSpeaker bool) ChunkFunc {
	return func(raw json.RawMessage) (*Segmentation, error) {
		if maxDuration <= 0 {
			return nil, fmt.Errorf("max chunk duration must be positive")
		}

		words, problems, err := model.DecodeWordUnits(raw)
		if err != nil {
			return nil, err
		}

		return &Segmentation{
			Chunks:   SegmentWords(words, maxDuration, keepSameSpeaker),
			Lines:    model.LinesFromWords(words),
			Problems: problems,
		}, nil
	}
}

// SegmentLines adds lines to the current chunk while the combined word count stays
// below maxWords. A line that would reach it closes the chunk and starts the next one.
// Empty input yields one empty chunk.
func SegmentLines(lines []model.LineUnit, maxWords int) []model.Chunk {
	chunks := []model.Chunk{}
	var current lineRun

	for _, line := range lines {
		words := len(strings.Fields(line.Text))
		if current.units > 0 && current.words+words >= maxWords {
			chunks = append(chunks, current.chunk(len(chunks)))
			current = lineRun{}
		}
		current.add(line, words)
	}

	return append(chunks, current.chunk(len(chunks)))
}

type lineRun struct {
	texts     []string
	units     int
	words     int
	timed     bool
	timeRange model.TimeRange
}

func (r *lineRun) add(line model.LineUnit, words int) {
	if text := strings.TrimSpace(line.Text); text != "" {
		r.texts = append(r.texts, text)
	}
	r.units++
	r.words += words

	if line.Timestamp == nil {
		return
	}
	if !r.timed {
		r.timeRange = *line.Timestamp
		r.timed = true
		return
	}
	r.timeRange.Start = min(r.timeRange.Start, line.Timestamp.Start)
	r.timeRange.End = max(r.timeRange.End, line.Timestamp.End)
}

func (r *lineRun) chunk(index int) model.Chunk {
	return model.Chunk{
		ID:        model.ChunkID(index),
		TimeRange: r.timeRange,
		Text:      strings.Join(r.texts, " "),
	}
}

// SegmentWords adds words to the current run while the duration from the run's
// start to the word's end stays within maxDuration. Empty input yields no chunks.
func SegmentWords(words []model.WordUnit, maxDuration float64, keepSameSpeaker bool) []model.Chunk {
	chunks := []model.Chunk{}
	var texts []string
	var timeRange model.TimeRange
	var speaker string

	flush := func() {
		chunks = append(chunks, model.Chunk{
			ID:        model.ChunkID(len(chunks)),
			TimeRange: timeRange,
			Text:      strings.Join(texts, " "),
		})
	}

	for _, word := range words {
		if texts != nil {
			tooLong := word.End-timeRange.Start > maxDuration
			speakerChanged := keepSameSpeaker && word.Speaker != speaker
			if !tooLong && !speakerChanged {
				texts = append(texts, strings.TrimSpace(word.Text))
				timeRange.End = word.End
				continue
			}
			flush()
		}

		texts = []string{strings.TrimSpace(word.Text)}
		timeRange = model.TimeRange{Start: word.Start, End: word.End}
		speaker = word.Speaker
	}

	if texts != nil {
		flush()
	}
	return chunks
}
