package submissions

import (
	"time"
)

// ID tipe untuk Submission
type SubmissionID string

// Status enum for the submission lifecycle
type Status string

const (
	StatusPending              Status = "pending"
	StatusProcessing           Status = "processing"
	StatusComplete             Status = "complete"
	StatusError                Status = "error"
	StatusSubscriptionInactive Status = "error_subscription_inactive"
)

// Terminal reports whether a status ends the pipeline for a submission.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusError, StatusSubscriptionInactive:
		return true
	}
	return false
}

// Aggregate Root: Submission
// One row per uploaded worksheet image. Rows are created by the upload
// flow in state pending; this service only claims them and moves the
// status forward, never back to pending within a run.
type Submission struct {
	ID          SubmissionID `json:"id"`
	UserID      string       `json:"user_id"`
	ExerciseID  string       `json:"exercise_id"`
	ImageURL    string       `json:"image_url"`
	Status      Status       `json:"status"`
	SubmittedAt time.Time    `json:"submitted_at"`
}
