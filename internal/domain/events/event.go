package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Change types emitted by the database notification source.
type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
)

// SubmissionsTable is the only table this pipeline reacts to.
const SubmissionsTable = "submissions"

// ErrMalformed indicates the payload did not match the event schema.
var ErrMalformed = errors.New("malformed change event")

// ChangeEvent is one row-level change notification. Record is kept raw
// because only submission inserts get decoded further.
type ChangeEvent struct {
	Type      ChangeType      `json:"type"`
	Table     string          `json:"table"`
	Schema    string          `json:"schema"`
	Record    json.RawMessage `json:"record"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

// SubmissionRecord is the new-row image of a submissions insert.
type SubmissionRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ExerciseID  string    `json:"exercise_id"`
	ImageURL    string    `json:"image_url"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Parse validates the envelope on entry instead of trusting the payload
// downstream. Only type and table are required here; the record is
// checked when it is actually decoded.
func Parse(body []byte) (*ChangeEvent, error) {
	var evt ChangeEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if evt.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if evt.Table == "" {
		return nil, fmt.Errorf("%w: missing table", ErrMalformed)
	}
	return &evt, nil
}

// IsSubmissionInsert reports whether the event is the one kind the
// pipeline processes. Everything else is a no-op success.
func (e *ChangeEvent) IsSubmissionInsert() bool {
	return e.Type == Insert && e.Table == SubmissionsTable
}

// SubmissionRecord decodes the new-row image and enforces the fields the
// pipeline cannot run without.
func (e *ChangeEvent) SubmissionRecord() (*SubmissionRecord, error) {
	if len(e.Record) == 0 {
		return nil, fmt.Errorf("%w: missing record", ErrMalformed)
	}
	var rec SubmissionRecord
	if err := json.Unmarshal(e.Record, &rec); err != nil {
		return nil, fmt.Errorf("%w: record: %v", ErrMalformed, err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: record missing id", ErrMalformed)
	}
	if rec.UserID == "" {
		return nil, fmt.Errorf("%w: record missing user_id", ErrMalformed)
	}
	if rec.ImageURL == "" {
		return nil, fmt.Errorf("%w: record missing image_url", ErrMalformed)
	}
	return &rec, nil
}
