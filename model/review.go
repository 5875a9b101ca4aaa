package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Review record types and field names used by the review tool.
const (
	ReviewTypeLabels   = "labels"
	ReviewTypeTextarea = "textarea"
	ReviewFromLabel    = "label"
	ReviewToText       = "text"
)

// ReviewValue is the value of a review record.
// Text is a string for labels records and a list of strings for textarea records.
type ReviewValue struct {
	Start      *int            `json:"start,omitempty"`
	End        *int            `json:"end,omitempty"`
	Text       json.RawMessage `json:"text,omitempty"`
	Labels     []string        `json:"labels,omitempty"`
	Timestamps *TimeRange      `json:"timestamps,omitempty"`
	Score      *float64        `json:"score,omitempty"`
}

// ReviewRecord is one record of a review region. All records of a region share the id.
type ReviewRecord struct {
	ID       string      `json:"id"`
	FromName string      `json:"from_name"`
	ToName   string      `json:"to_name"`
	Type     string      `json:"type"`
	Value    ReviewValue `json:"value"`
}

// TextString returns the text of a labels record.
func (r ReviewRecord) TextString() (string, bool) {
	var s string
	if err := json.Unmarshal(r.Value.Text, &s); err != nil {
		return "", false
	}
	return s, true
}

// TextList returns the texts of a textarea record.
func (r ReviewRecord) TextList() ([]string, bool) {
	var list []string
	if err := json.Unmarshal(r.Value.Text, &list); err != nil {
		return nil, false
	}
	return list, true
}

// ReviewResult is one prediction or annotation of a review task.
type ReviewResult struct {
	Result []ReviewRecord `json:"result"`
}

// ReviewTask is an exported review task.
type ReviewTask struct {
	ID          int            `json:"id,omitempty"`
	FileUpload  string         `json:"file_upload,omitempty"`
	Data        FileData       `json:"data"`
	Annotations []ReviewResult `json:"annotations"`
	Predictions []ReviewResult `json:"predictions,omitempty"`
}

// NewRegionID returns a fresh review region id.
func NewRegionID() string {
	return uuid.New().String()
}

// NewLabelsRecord creates the primary record of a region for an entity.
// The entity's global offsets are written as given.
func NewLabelsRecord(regionID string, e Entity) ReviewRecord {
	start, end, score := e.GlobalStart, e.GlobalEnd, e.Score
	text, _ := json.Marshal(e.Text)
	timestamps := e.Timestamps
	return ReviewRecord{
		ID:       regionID,
		FromName: ReviewFromLabel,
		ToName:   ReviewToText,
		Type:     ReviewTypeLabels,
		Value: ReviewValue{
			Start:      &start,
			End:        &end,
			Text:       text,
			Labels:     []string{e.Label},
			Timestamps: &timestamps,
			Score:      &score,
		},
	}
}

// NewTextareaRecord creates a secondary record carrying one attribute of a region.
func NewTextareaRecord(regionID string, fromName string, texts ...string) ReviewRecord {
	if texts == nil {
		texts = []string{}
	}
	text, _ := json.Marshal(texts)
	return ReviewRecord{
		ID:       regionID,
		FromName: fromName,
		ToName:   ReviewToText,
		Type:     ReviewTypeTextarea,
		Value:    ReviewValue{Text: text},
	}
}
