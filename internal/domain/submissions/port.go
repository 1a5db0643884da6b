package submissions

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	Get(ctx context.Context, id SubmissionID) (*Submission, error)
	Latest(ctx context.Context, userID string, limit int) ([]*Submission, error)

	// ClaimPending moves pending -> processing as a single conditional
	// write. It returns false when the row was no longer pending, which
	// is how a redelivered event loses the claim and becomes a no-op.
	ClaimPending(ctx context.Context, id SubmissionID) (bool, error)

	// UpdateStatus unconditionally sets the status for one submission.
	UpdateStatus(ctx context.Context, id SubmissionID, status Status) error

	// Release moves processing -> pending so an operator can re-arm a
	// row that was stranded by a killed run.
	Release(ctx context.Context, id SubmissionID) (bool, error)
}
