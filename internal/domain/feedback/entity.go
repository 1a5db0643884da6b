package feedback

import "time"

// FeedbackID identifier type
type FeedbackID string

// Feedback is one stored AI coaching result for a submission.
type Feedback struct {
	ID           FeedbackID `json:"id"`
	SubmissionID string     `json:"submission_id"`
	UserID       string     `json:"user_id"`
	Body         string     `json:"body"`
	Model        string     `json:"model,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
