package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/memories/helper"
	"github.com/siherrmann/memories/model"
	loadSql "github.com/siherrmann/memories/sql"
)

// InterviewsDBHandlerFunctions defines the interface for Interviews database operations.
type InterviewsDBHandlerFunctions interface {
	InsertInterview(record *model.InterviewRecord) error
	SelectInterview(rid uuid.UUID) (*model.InterviewRecord, error)
	SelectInterviewByHash(sourceHash string) (*model.InterviewRecord, error)
	SelectAllInterviews(lastCreatedAt *time.Time, limit int) ([]*model.InterviewRecord, error)
	UpdateInterview(record *model.InterviewRecord) error
	DeleteInterview(rid uuid.UUID) error
}

// InterviewsDBHandler handles interview-related database operations
type InterviewsDBHandler struct {
	db *helper.Database
}

// NewInterviewsDBHandler creates a new interviews database handler.
// It loads the interview-related SQL functions and creates the table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewInterviewsDBHandler(db *helper.Database, force bool) (*InterviewsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	interviewsDbHandler := &InterviewsDBHandler{
		db: db,
	}

	err := loadSql.LoadInterviewsSql(interviewsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load interviews sql", err)
	}

	err = interviewsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized InterviewsDBHandler")

	return interviewsDbHandler, nil
}

// CreateTable creates the 'interviews' table in the database.
// If the table already exists, it does not create it again.
func (h *InterviewsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_interviews();`)
	if err != nil {
		return helper.NewError("init interviews", err)
	}

	h.db.Logger.Info("Checked/created table interviews")

	return nil
}

// InsertInterview inserts a new interview and sets its id, rid and timestamps
func (h *InterviewsDBHandler) InsertInterview(record *model.InterviewRecord) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_interview($1, $2, $3, $4)`,
		record.Label,
		record.OriginalURI,
		record.SourceHash,
		payload(record),
	)

	err := scanInterview(row, record)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectInterview retrieves an interview by RID
func (h *InterviewsDBHandler) SelectInterview(rid uuid.UUID) (*model.InterviewRecord, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_interview($1)`,
		rid,
	)

	record := &model.InterviewRecord{}
	err := scanInterview(row, record)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return record, nil
}

// SelectInterviewByHash retrieves an interview by the hash of its source file.
// It returns nil without error if no interview has the hash.
func (h *InterviewsDBHandler) SelectInterviewByHash(sourceHash string) (*model.InterviewRecord, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_interview_by_hash($1)`,
		sourceHash,
	)

	record := &model.InterviewRecord{}
	err := scanInterview(row, record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return record, nil
}

// SelectAllInterviews retrieves interviews newest first, created before lastCreatedAt if set
func (h *InterviewsDBHandler) SelectAllInterviews(lastCreatedAt *time.Time, limit int) ([]*model.InterviewRecord, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_all_interviews($1, $2)`,
		lastCreatedAt,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var records []*model.InterviewRecord
	for rows.Next() {
		record := &model.InterviewRecord{}
		err := scanInterview(rows, record)
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

// UpdateInterview updates label, original uri and payload of an interview
func (h *InterviewsDBHandler) UpdateInterview(record *model.InterviewRecord) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM update_interview($1, $2, $3, $4)`,
		record.RID,
		record.Label,
		record.OriginalURI,
		payload(record),
	)

	err := scanInterview(row, record)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteInterview deletes an interview with its chunks and entities
func (h *InterviewsDBHandler) DeleteInterview(rid uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_interview($1)`,
		rid,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInterview(row scanner, record *model.InterviewRecord) error {
	record.Payload = &model.InterviewFile{}
	return row.Scan(
		&record.ID,
		&record.RID,
		&record.Label,
		&record.OriginalURI,
		&record.SourceHash,
		record.Payload,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
}

func payload(record *model.InterviewRecord) model.InterviewFile {
	if record.Payload == nil {
		return model.InterviewFile{Metadata: model.FileMetadata{Label: record.Label, OriginalURI: record.OriginalURI, SourceHash: record.SourceHash}}
	}
	return *record.Payload
}
