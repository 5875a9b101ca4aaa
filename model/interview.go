package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/memories/helper"
)

// Topic is an aggregated topic with its number of occurrences. It marshals as [label, count].
type Topic struct {
	Label string
	Count int
}

// MarshalJSON encodes the topic as a two element array.
func (t Topic) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{t.Label, t.Count})
}

// UnmarshalJSON decodes a [label, count] pair.
func (t *Topic) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("topic: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("topic: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &t.Label); err != nil {
		return fmt.Errorf("topic label: %w", err)
	}
	if err := json.Unmarshal(pair[1], &t.Count); err != nil {
		return fmt.Errorf("topic count: %w", err)
	}
	return nil
}

// ChunkTopics holds the topics found in one chunk.
type ChunkTopics struct {
	ChunkID string   `json:"chunk_id"`
	Topics  []string `json:"topics"`
}

// LLMLocation is a location suggested by the language model for a chunk.
type LLMLocation struct {
	Location    string `json:"location"`
	New         bool   `json:"new"`
	Explanation string `json:"explanation"`
}

// ChunkLocations holds the language model locations of one chunk.
type ChunkLocations struct {
	ChunkID   string        `json:"chunk_id"`
	Locations []LLMLocation `json:"locations"`
}

// MediaObject is the resolved media reference of an interview.
type MediaObject struct {
	Name      string `json:"name,omitempty"`
	ID        string `json:"id,omitempty"`
	ContentID string `json:"content_id,omitempty"`
}

// Interview is the document the pipeline works on.
// FullText must equal the concatenation of every chunk text plus separator;
// changing chunks after projection invalidates all global offsets.
type Interview struct {
	// RID is set once the interview was persisted.
	RID              uuid.UUID
	Label            string
	OriginalURI      string
	SourceHash       string
	Raw              json.RawMessage
	Lines            []LineUnit
	Chunks           []Chunk
	FullText         string
	Entities         *EntityStore
	OriginalEntities []Entity
	Topics           []Topic
	ChunkTopics      []ChunkTopics
	ChunkLocations   []ChunkLocations
	// ReviewAnnotations passes the reviewed annotations of the last import through.
	ReviewAnnotations json.RawMessage
}

// NewInterview creates an empty interview. The original uri defaults to the label.
func NewInterview(label string, originalURI string) *Interview {
	if originalURI == "" {
		originalURI = label
	}
	return &Interview{
		Label:       label,
		OriginalURI: originalURI,
		Entities:    NewEntityStore(),
	}
}

// ChunkByID returns the chunk with the given id.
func (i *Interview) ChunkByID(id string) (Chunk, bool) {
	index, err := ChunkIndex(id)
	if err == nil && index >= 0 && index < len(i.Chunks) && i.Chunks[index].ID == id {
		return i.Chunks[index], true
	}
	for _, c := range i.Chunks {
		if c.ID == id {
			return c, true
		}
	}
	return Chunk{}, false
}

// FileMetadata is the metadata section of an interview file.
type FileMetadata struct {
	Label       string `json:"label"`
	OriginalURI string `json:"original_uri,omitempty"`
	SourceHash  string `json:"source_hash,omitempty"`
}

// FileData holds the review friendly full text.
type FileData struct {
	Text string `json:"text"`
}

// InterviewFile is the persisted per-interview JSON document.
// It is also stored as JSONB in PostgreSQL.
type InterviewFile struct {
	Metadata         FileMetadata     `json:"metadata"`
	Entities         []Entity         `json:"entities"`
	EntitiesOriginal []Entity         `json:"entities_original,omitempty"`
	TopicsChunk      []ChunkTopics    `json:"topics_chunk"`
	TopicsAggregate  []Topic          `json:"topics_aggregate"`
	LocationsChunk   []ChunkLocations `json:"locations_chunk"`
	TranscriptChunks []Chunk          `json:"transcript_chunks"`
	TranscriptRaw    json.RawMessage  `json:"transcript_raw"`
	Data             FileData         `json:"data"`
	Predictions      []ReviewResult   `json:"predictions"`
	Annotations      json.RawMessage  `json:"annotations,omitempty"`
}

// ToFile converts the interview into its persisted shape with the given review predictions.
func (i *Interview) ToFile(predictions []ReviewRecord) *InterviewFile {
	raw := i.Raw
	if len(raw) == 0 {
		raw = json.RawMessage("[]")
	}
	if predictions == nil {
		predictions = []ReviewRecord{}
	}

	return &InterviewFile{
		Metadata: FileMetadata{
			Label:       i.Label,
			OriginalURI: i.OriginalURI,
			SourceHash:  i.SourceHash,
		},
		Entities:         i.entitiesInChars(i.Entities.All()),
		EntitiesOriginal: i.entitiesInChars(i.OriginalEntities),
		TopicsChunk:      nonNil(i.ChunkTopics),
		TopicsAggregate:  nonNil(i.Topics),
		LocationsChunk:   nonNil(i.ChunkLocations),
		TranscriptChunks: nonNil(i.Chunks),
		TranscriptRaw:    raw,
		Data:             FileData{Text: i.FullText},
		Predictions:      []ReviewResult{{Result: predictions}},
		Annotations:      i.ReviewAnnotations,
	}
}

// Interview restores an interview from its persisted shape.
// The line table source is re-derived from the raw transcription.
func (f *InterviewFile) Interview() (*Interview, error) {
	lines, _, err := DecodeLineUnits(f.TranscriptRaw)
	if err != nil {
		return nil, helper.NewError("decode transcript", err)
	}

	interview := NewInterview(f.Metadata.Label, f.Metadata.OriginalURI)
	interview.SourceHash = f.Metadata.SourceHash
	interview.Raw = f.TranscriptRaw
	interview.Lines = lines
	interview.Chunks = f.TranscriptChunks
	interview.FullText = f.Data.Text
	entities, err := interview.entitiesInBytes(f.Entities)
	if err != nil {
		return nil, err
	}
	interview.Entities = NewEntityStore(entities...)
	interview.OriginalEntities, err = interview.entitiesInBytes(f.EntitiesOriginal)
	if err != nil {
		return nil, err
	}
	interview.Topics = f.TopicsAggregate
	interview.ChunkTopics = f.TopicsChunk
	interview.ChunkLocations = f.LocationsChunk
	interview.ReviewAnnotations = f.Annotations
	return interview, nil
}

// Value implements the driver.Valuer interface for database storage
func (f InterviewFile) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements the sql.Scanner interface for database retrieval
func (f *InterviewFile) Scan(value interface{}) error {
	if value == nil {
		*f = InterviewFile{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
	}

	return json.Unmarshal(b, f)
}

// ReadInterviewFile reads an interview file from disk.
func ReadInterviewFile(path string) (*InterviewFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, helper.NewError("read interview file", err)
	}

	file := &InterviewFile{}
	if err := json.Unmarshal(b, file); err != nil {
		return nil, helper.NewError("decode interview file", err)
	}
	return file, nil
}

// WriteFile writes the interview file as indented JSON into dir, named after the label.
func (f *InterviewFile) WriteFile(dir string) (string, error) {
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", helper.NewError("encode interview file", err)
	}

	path := filepath.Join(dir, f.Metadata.Label+".json")
	if err := os.WriteFile(path, b, 0600); err != nil {
		return "", helper.NewError("write interview file", err)
	}
	return path, nil
}

// InterviewRecord is a persisted interview row.
type InterviewRecord struct {
	ID          int64          `json:"id"`
	RID         uuid.UUID      `json:"rid"`
	Label       string         `json:"label"`
	OriginalURI string         `json:"original_uri"`
	SourceHash  string         `json:"source_hash"`
	Payload     *InterviewFile `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// entitiesInChars converts entity offsets to characters of the chunk and full texts.
// Local offsets of entities without a known chunk are kept.
func (i *Interview) entitiesInChars(entities []Entity) []Entity {
	if entities == nil {
		return nil
	}
	out := make([]Entity, len(entities))
	for n, e := range entities {
		chunkText, ok := i.chunkText(e)
		out[n] = e.InChars(chunkText, i.FullText)
		if !ok {
			out[n].LocalStart, out[n].LocalEnd = e.LocalStart, e.LocalEnd
		}
	}
	return out
}

func (i *Interview) entitiesInBytes(entities []Entity) ([]Entity, error) {
	if entities == nil {
		return nil, nil
	}
	out := make([]Entity, len(entities))
	for n, e := range entities {
		chunkText, ok := i.chunkText(e)
		localStart, localEnd := e.LocalStart, e.LocalEnd
		if !ok {
			e.LocalStart, e.LocalEnd = 0, 0
		}
		converted, err := e.InBytes(chunkText, i.FullText)
		if err != nil {
			return nil, err
		}
		if !ok {
			converted.LocalStart, converted.LocalEnd = localStart, localEnd
		}
		out[n] = converted
	}
	return out, nil
}

func (i *Interview) chunkText(e Entity) (string, bool) {
	chunk, ok := i.ChunkByID(e.ChunkID)
	if !ok {
		return "", false
	}
	return chunk.Text, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
