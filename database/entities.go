package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/memories/helper"
	"github.com/siherrmann/memories/model"
	"github.com/siherrmann/memories/sql"
)

// EntitiesDBHandlerFunctions defines the interface for entity mention database operations.
type EntitiesDBHandlerFunctions interface {
	InsertEntity(record *model.EntityRecord) error
	SelectEntitiesByInterview(interviewRID uuid.UUID) ([]*model.EntityRecord, error)
	SelectEntitiesByText(text string, label string, limit int) ([]*model.EntityRecord, error)
	DeleteEntitiesByInterview(interviewID int64) error
}

// EntitiesDBHandler handles entity mention database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It loads the entity-related SQL functions and creates the table.
// The interviews table must exist.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := sql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entity_mentions' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		return helper.NewError("init entities", err)
	}

	h.db.Logger.Info("Checked/created table entity_mentions")

	return nil
}

// InsertEntity inserts an entity mention of an interview
func (h *EntitiesDBHandler) InsertEntity(record *model.EntityRecord) error {
	e := record.Entity

	var lineIndex *int
	var lineStart, lineEnd *float64
	var lineText *string
	if e.Line != nil {
		lineIndex = &e.Line.Index
		lineStart = &e.Line.Timestamp.Start
		lineEnd = &e.Line.Timestamp.End
		lineText = &e.Line.Text
	}

	subjects := e.SubjectURIs
	if subjects == nil {
		subjects = []string{}
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_entity($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		record.InterviewID,
		e.ChunkID,
		e.Text,
		e.Label,
		e.LocalStart,
		e.LocalEnd,
		e.GlobalStart,
		e.GlobalEnd,
		e.Timestamps.Start,
		e.Timestamps.End,
		e.Score,
		e.Links,
		pq.Array(subjects),
		lineIndex,
		lineStart,
		lineEnd,
		lineText,
	)

	err := row.Scan(
		&record.ID,
		&record.InterviewID,
		&record.InterviewRID,
		&record.InterviewLabel,
		&record.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectEntitiesByInterview retrieves all entity mentions of an interview in insertion order
func (h *EntitiesDBHandler) SelectEntitiesByInterview(interviewRID uuid.UUID) ([]*model.EntityRecord, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_entities_by_interview($1)`,
		interviewRID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var records []*model.EntityRecord
	for rows.Next() {
		record, err := scanEntity(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return records, nil
}

// SelectEntitiesByText finds the mentions of an entity across all interviews.
// The text is matched case insensitive, an empty label matches every label.
func (h *EntitiesDBHandler) SelectEntitiesByText(text string, label string, limit int) ([]*model.EntityRecord, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_entities_by_text($1, $2, $3)`,
		text,
		label,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var records []*model.EntityRecord
	for rows.Next() {
		record, err := scanEntity(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return records, nil
}

// DeleteEntitiesByInterview deletes all entity mentions of an interview
func (h *EntitiesDBHandler) DeleteEntitiesByInterview(interviewID int64) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_entities_by_interview($1)`,
		interviewID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanEntity(row scanner) (*model.EntityRecord, error) {
	record := &model.EntityRecord{}
	e := &record.Entity

	var lineIndex *int
	var lineStart, lineEnd *float64
	var lineText *string
	err := row.Scan(
		&record.ID,
		&record.InterviewID,
		&record.InterviewRID,
		&record.InterviewLabel,
		&e.ChunkID,
		&e.Text,
		&e.Label,
		&e.LocalStart,
		&e.LocalEnd,
		&e.GlobalStart,
		&e.GlobalEnd,
		&e.Timestamps.Start,
		&e.Timestamps.End,
		&e.Score,
		&e.Links,
		pq.Array(&e.SubjectURIs),
		&lineIndex,
		&lineStart,
		&lineEnd,
		&lineText,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(e.Links) == 0 {
		e.Links = nil
	}
	if len(e.SubjectURIs) == 0 {
		e.SubjectURIs = nil
	}
	if lineIndex != nil {
		e.Line = &model.LineRef{Index: *lineIndex}
		if lineStart != nil && lineEnd != nil {
			e.Line.Timestamp = model.TimeRange{Start: *lineStart, End: *lineEnd}
		}
		if lineText != nil {
			e.Line.Text = *lineText
		}
	}
	return record, nil
}
