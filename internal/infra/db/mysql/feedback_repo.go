package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/inkwise/inkwise-backend/internal/domain/feedback"
)

type FeedbackRepository struct {
	db *sql.DB
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Save inserts a feedback record
func (r *FeedbackRepository) Save(ctx context.Context, f *domain.Feedback) error {
	const q = `
INSERT INTO submission_feedback
  (id, submission_id, user_id, body, model, created_at)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  body=VALUES(body), model=VALUES(model);
`
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, f.ID, f.SubmissionID, f.UserID, f.Body, f.Model, createdAt)
	return err
}

// LatestBySubmission returns the most recent feedback for a submission
func (r *FeedbackRepository) LatestBySubmission(ctx context.Context, submissionID string) (*domain.Feedback, error) {
	const q = `
SELECT id, submission_id, user_id, body, model, created_at
FROM submission_feedback
WHERE submission_id=?
ORDER BY created_at DESC, id DESC
LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, submissionID)

	var f domain.Feedback
	if err := row.Scan(&f.ID, &f.SubmissionID, &f.UserID, &f.Body, &f.Model, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}
