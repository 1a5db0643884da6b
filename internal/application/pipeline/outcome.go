package pipeline

// OutcomeCode tags the result of one pipeline run.
type OutcomeCode string

const (
	// OutcomeIgnored: event kind or table outside this pipeline's scope.
	OutcomeIgnored OutcomeCode = "ignored"
	// OutcomeDuplicate: the pending claim was lost, the submission was
	// already picked up by another delivery.
	OutcomeDuplicate OutcomeCode = "duplicate"
	// OutcomeDenied: entitlement gate refused the analysis.
	OutcomeDenied OutcomeCode = "denied"
	// OutcomeCompleted: analysis ran and the submission is complete.
	OutcomeCompleted OutcomeCode = "completed"
)

// Denial reasons surfaced in webhook responses.
const (
	ReasonNoEntitlement  = "no entitlement record"
	ReasonNoActivePlan   = "no active plan"
	ReasonQuotaExhausted = "analysis quota exhausted"
	ReasonPeriodEnded    = "billing period ended"
)

// Outcome is the structured result of processing one change event.
type Outcome struct {
	Code         OutcomeCode `json:"outcome"`
	SubmissionID string      `json:"submission_id,omitempty"`
	UserID       string      `json:"user_id,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	TextDetected bool        `json:"text_detected,omitempty"`
}

// Denied reports whether the run ended in an entitlement denial.
func (o Outcome) Denied() bool { return o.Code == OutcomeDenied }
