package model

import (
	"encoding/json"
	"fmt"

	"github.com/siherrmann/memories/helper"
)

// LineUnit is a timed text line of a transcription.
// A nil Timestamp means the source had none (plain text input).
type LineUnit struct {
	Text      string     `json:"text"`
	Timestamp *TimeRange `json:"timestamp,omitempty"`
}

// WordUnit is a timed word or segment of a diarized transcription.
type WordUnit struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// Validate checks the time range of the unit.
func (w WordUnit) Validate() error {
	if w.Start < 0 || w.End < 0 {
		return helper.MalformedInput("word unit %q has a negative timestamp", w.Text)
	}
	if w.End < w.Start {
		return helper.MalformedInput("word unit %q ends before it starts (%v < %v)", w.Text, w.End, w.Start)
	}
	return nil
}

type rawUnit struct {
	Text      *string    `json:"text"`
	Timestamp *TimeRange `json:"timestamp"`
	Start     *float64   `json:"start"`
	End       *float64   `json:"end"`
	Speaker   string     `json:"speaker"`
}

func decodeRawUnits(raw json.RawMessage) ([]rawUnit, error) {
	var units []rawUnit
	if len(raw) == 0 || string(raw) == "null" {
		return units, nil
	}
	if err := json.Unmarshal(raw, &units); err != nil {
		return nil, helper.MalformedInput("transcription is not a list of units: %v", err)
	}
	return units, nil
}

// DecodeLineUnits decodes a raw transcription into line units.
// Units of the word form contribute their start and end as timestamp.
// Units without text are reported and skipped.
func DecodeLineUnits(raw json.RawMessage) ([]LineUnit, []error, error) {
	units, err := decodeRawUnits(raw)
	if err != nil {
		return nil, nil, err
	}

	lines := make([]LineUnit, 0, len(units))
	var problems []error
	for i, u := range units {
		if u.Text == nil {
			problems = append(problems, helper.MalformedInput("unit %d has no text", i))
			continue
		}
		line := LineUnit{Text: *u.Text, Timestamp: u.Timestamp}
		if line.Timestamp == nil && u.Start != nil && u.End != nil {
			line.Timestamp = &TimeRange{Start: *u.Start, End: *u.End}
		}
		lines = append(lines, line)
	}
	return lines, problems, nil
}

// DecodeWordUnits decodes a raw transcription into word units.
// Units missing text, start or end, or with an invalid range are reported and skipped.
func DecodeWordUnits(raw json.RawMessage) ([]WordUnit, []error, error) {
	units, err := decodeRawUnits(raw)
	if err != nil {
		return nil, nil, err
	}

	words := make([]WordUnit, 0, len(units))
	var problems []error
	for i, u := range units {
		if u.Text == nil || u.Start == nil || u.End == nil {
			problems = append(problems, helper.MalformedInput("unit %d is missing text, start or end", i))
			continue
		}
		word := WordUnit{Start: *u.Start, End: *u.End, Text: *u.Text, Speaker: u.Speaker}
		if err := word.Validate(); err != nil {
			problems = append(problems, fmt.Errorf("unit %d: %w", i, err))
			continue
		}
		words = append(words, word)
	}
	return words, problems, nil
}

// LinesFromWords turns word units into line units, one per word unit.
func LinesFromWords(words []WordUnit) []LineUnit {
	lines := make([]LineUnit, len(words))
	for i, w := range words {
		lines[i] = LineUnit{Text: w.Text, Timestamp: &TimeRange{Start: w.Start, End: w.End}}
	}
	return lines
}
