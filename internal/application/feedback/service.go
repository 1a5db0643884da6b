package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/inkwise/inkwise-backend/internal/application"
	"github.com/inkwise/inkwise-backend/internal/domain/ai"
	domain "github.com/inkwise/inkwise-backend/internal/domain/feedback"
	"github.com/inkwise/inkwise-backend/internal/domain/submissions"
)

// ErrNotReady indicates the submission has not completed analysis yet,
// so there is nothing to coach on.
var ErrNotReady = errors.New("submission analysis not complete")

// Service implements use-cases for AI coaching feedback
type Service struct {
	Submissions submissions.Repository
	Feedback    domain.Repository
	AI          ai.Client
	Model       string
	Clock       application.Clock
}

// GenerateAndStore runs the coach against a completed submission's image
// and persists the result.
func (s *Service) GenerateAndStore(ctx context.Context, submissionID string) (*domain.Feedback, error) {
	sub, err := s.Submissions.Get(ctx, submissions.SubmissionID(submissionID))
	if err != nil {
		return nil, err
	}
	if sub.Status != submissions.StatusComplete {
		return nil, fmt.Errorf("%w: submission %s is %s", ErrNotReady, submissionID, sub.Status)
	}

	body, err := s.AI.Coach(ctx, sub.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("generate feedback for submission %s: %w", submissionID, err)
	}

	fb := &domain.Feedback{
		ID:           domain.FeedbackID(uuid.New().String()),
		SubmissionID: submissionID,
		UserID:       sub.UserID,
		Body:         body,
		Model:        s.Model,
		CreatedAt:    s.Clock.Now(),
	}
	if err := s.Feedback.Save(ctx, fb); err != nil {
		return nil, fmt.Errorf("save feedback for submission %s: %w", submissionID, err)
	}
	return fb, nil
}

// LatestBySubmission returns the most recent stored feedback.
func (s *Service) LatestBySubmission(ctx context.Context, submissionID string) (*domain.Feedback, error) {
	return s.Feedback.LatestBySubmission(ctx, submissionID)
}
