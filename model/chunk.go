package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const chunkIDPrefix = "id_transcription_"

// TimeRange is a media time span in seconds. It marshals as [start, end].
type TimeRange struct {
	Start float64
	End   float64
}

// MarshalJSON encodes the range as a two element array.
func (t TimeRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{t.Start, t.End})
}

// UnmarshalJSON accepts [start, end] where either element may be null, and null.
func (t *TimeRange) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = TimeRange{}
		return nil
	}

	var pair []*float64
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("time range: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("time range: expected 2 elements, got %d", len(pair))
	}

	*t = TimeRange{}
	if pair[0] != nil {
		t.Start = *pair[0]
	}
	if pair[1] != nil {
		t.End = *pair[1]
	}
	return nil
}

// Fragment renders the range as a media fragment value.
func (t TimeRange) Fragment() string {
	return "t=" + strconv.FormatFloat(t.Start, 'f', -1, 64) + "," + strconv.FormatFloat(t.End, 'f', -1, 64)
}

// Chunk is a bounded contiguous segment of a transcript.
// Chunks are immutable after segmentation.
type Chunk struct {
	ID        string    `json:"id"`
	TimeRange TimeRange `json:"timestamp"`
	Text      string    `json:"text"`
}

// ChunkID derives the chunk id from its ordinal index.
func ChunkID(index int) string {
	return chunkIDPrefix + strconv.Itoa(index)
}

// ChunkIndex parses the ordinal index back out of a chunk id.
func ChunkIndex(id string) (int, error) {
	if !strings.HasPrefix(id, chunkIDPrefix) {
		return 0, fmt.Errorf("chunk id %q has no %q prefix", id, chunkIDPrefix)
	}
	index, err := strconv.Atoi(strings.TrimPrefix(id, chunkIDPrefix))
	if err != nil {
		return 0, fmt.Errorf("chunk id %q: %w", id, err)
	}
	return index, nil
}
