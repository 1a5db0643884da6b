package feedback

import "context"

// Repository port for persisting and querying feedback
type Repository interface {
	Save(ctx context.Context, f *Feedback) error
	LatestBySubmission(ctx context.Context, submissionID string) (*Feedback, error)
}
