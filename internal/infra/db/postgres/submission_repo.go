package postgres

import (
	"context"
	"database/sql"

	domain "github.com/inkwise/inkwise-backend/internal/domain/submissions"
)

type SubmissionRepository struct{ db *sql.DB }

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository { return &SubmissionRepository{db: db} }

// Get by ID
func (r *SubmissionRepository) Get(ctx context.Context, id domain.SubmissionID) (*domain.Submission, error) {
	const q = `
SELECT id, user_id, exercise_id, image_url, status, submitted_at
FROM submissions
WHERE id=$1 LIMIT 1;`
	row := r.db.QueryRowContext(ctx, q, id)

	var s domain.Submission
	if err := row.Scan(&s.ID, &s.UserID, &s.ExerciseID, &s.ImageURL, &s.Status, &s.SubmittedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// Latest submissions per user
func (r *SubmissionRepository) Latest(ctx context.Context, userID string, limit int) ([]*domain.Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, exercise_id, image_url, status, submitted_at
FROM submissions
WHERE user_id=$1 ORDER BY submitted_at DESC LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Submission
	for rows.Next() {
		var s domain.Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.ExerciseID, &s.ImageURL, &s.Status, &s.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// ClaimPending: conditional pending -> processing
func (r *SubmissionRepository) ClaimPending(ctx context.Context, id domain.SubmissionID) (bool, error) {
	const q = `
UPDATE submissions
SET status = $1
WHERE id = $2 AND status = $3;`
	res, err := r.db.ExecContext(ctx, q, domain.StatusProcessing, id, domain.StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateStatus sets the status column for one submission
func (r *SubmissionRepository) UpdateStatus(ctx context.Context, id domain.SubmissionID, status domain.Status) error {
	const q = `
UPDATE submissions
SET status = $1
WHERE id = $2;`
	_, err := r.db.ExecContext(ctx, q, status, id)
	return err
}

// Release: processing -> pending
func (r *SubmissionRepository) Release(ctx context.Context, id domain.SubmissionID) (bool, error) {
	const q = `
UPDATE submissions
SET status = $1
WHERE id = $2 AND status = $3;`
	res, err := r.db.ExecContext(ctx, q, domain.StatusPending, id, domain.StatusProcessing)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
