package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/inkwise/inkwise-backend/internal/application"
	"github.com/inkwise/inkwise-backend/internal/domain/entitlements"
	"github.com/inkwise/inkwise-backend/internal/domain/events"
	"github.com/inkwise/inkwise-backend/internal/domain/submissions"
	"github.com/inkwise/inkwise-backend/internal/domain/vision"
)

// Service implements the submission analysis pipeline:
// intake filter -> claim -> entitlement gate -> vision call -> transition.
// Stages run strictly in order; each one gates the next.
// Service is designed to be used concurrently and is thread-safe.
type Service struct {
	Submissions  submissions.Repository
	Entitlements entitlements.Repository
	Vision       vision.Client
	// Archive is optional; when set, raw annotation payloads are stored
	// for audit. Archive failures never fail the run.
	Archive vision.ArchiveStore
	Clock   application.Clock
}

// run carries the identifiers captured at entry so the failure path never
// has to re-read the original request.
type run struct {
	submissionID string
	userID       string

	claimed           bool
	terminal          bool
	statusWriteFailed bool
}

// Process handles one change event end to end. Denials are first-class
// outcomes, never errors; a returned error means an unexpected fault and
// the submission (if claimed) has been best-effort marked error.
func (s *Service) Process(ctx context.Context, evt *events.ChangeEvent) (out Outcome, err error) {
	if !evt.IsSubmissionInsert() {
		return Outcome{Code: OutcomeIgnored}, nil
	}

	rec, err := evt.SubmissionRecord()
	if err != nil {
		return Outcome{}, err
	}

	r := &run{submissionID: rec.ID, userID: rec.UserID}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("submission pipeline panic: %v", p)
		}
		if err != nil {
			s.reportFailure(r)
		}
	}()

	return s.process(ctx, r, rec)
}

func (s *Service) process(ctx context.Context, r *run, rec *events.SubmissionRecord) (Outcome, error) {
	out := Outcome{SubmissionID: rec.ID, UserID: rec.UserID}
	id := submissions.SubmissionID(rec.ID)

	// Claim before anything else: pending -> processing only while the
	// row is still pending, so a redelivered event is a no-op.
	claimed, err := s.Submissions.ClaimPending(ctx, id)
	if err != nil {
		return out, fmt.Errorf("claim submission %s: %w", rec.ID, err)
	}
	if !claimed {
		out.Code = OutcomeDuplicate
		return out, nil
	}
	r.claimed = true

	dec, err := s.authorize(ctx, rec.UserID)
	if err != nil {
		return out, err
	}
	if !dec.allowed {
		if err := s.transition(ctx, r, id, submissions.StatusSubscriptionInactive); err != nil {
			return out, err
		}
		out.Code = OutcomeDenied
		out.Reason = dec.reason
		return out, nil
	}

	ann, err := s.Vision.DetectDocumentText(ctx, rec.ImageURL)
	if err != nil {
		return out, fmt.Errorf("detect document text for submission %s: %w", rec.ID, err)
	}

	s.archive(ctx, rec, ann)

	if err := s.transition(ctx, r, id, submissions.StatusComplete); err != nil {
		return out, err
	}
	if err := s.Entitlements.DecrementRemaining(ctx, rec.UserID); err != nil {
		return out, fmt.Errorf("decrement remaining analyses for user %s: %w", rec.UserID, err)
	}

	out.Code = OutcomeCompleted
	out.TextDetected = ann.TextDetected
	return out, nil
}

// decision is the entitlement gate's tagged result.
type decision struct {
	allowed bool
	reason  string
}

// authorize resolves the user's entitlement and decides allow/deny.
// Checks short-circuit in order; a denial never reaches the vision call,
// so it can never consume quota or incur external cost.
func (s *Service) authorize(ctx context.Context, userID string) (decision, error) {
	ent, err := s.Entitlements.GetByUser(ctx, userID)
	if errors.Is(err, entitlements.ErrNotFound) {
		// First encounter: record the zero-quota default so the user
		// exists in the ledger, then deny.
		if ierr := s.Entitlements.InsertDefault(ctx, userID); ierr != nil {
			return decision{}, fmt.Errorf("insert default entitlement for user %s: %w", userID, ierr)
		}
		return decision{reason: ReasonNoEntitlement}, nil
	}
	if err != nil {
		return decision{}, fmt.Errorf("look up entitlement for user %s: %w", userID, err)
	}

	switch {
	case ent.ActivePlanID == nil:
		return decision{reason: ReasonNoActivePlan}, nil
	case ent.RemainingAnalyses != nil && *ent.RemainingAnalyses <= 0:
		return decision{reason: ReasonQuotaExhausted}, nil
	case ent.CurrentPeriodEnd != nil && !ent.CurrentPeriodEnd.After(s.Clock.Now()):
		return decision{reason: ReasonPeriodEnded}, nil
	}
	return decision{allowed: true}, nil
}

// transition records a terminal status and tracks whether a failed status
// write was the fault itself, so the failure reporter does not retry it.
func (s *Service) transition(ctx context.Context, r *run, id submissions.SubmissionID, st submissions.Status) error {
	if err := s.Submissions.UpdateStatus(ctx, id, st); err != nil {
		r.statusWriteFailed = true
		return fmt.Errorf("mark submission %s %s: %w", id, st, err)
	}
	r.terminal = true
	return nil
}

func (s *Service) archive(ctx context.Context, rec *events.SubmissionRecord, ann *vision.Annotation) {
	if s.Archive == nil || len(ann.Raw) == 0 {
		return
	}
	key := fmt.Sprintf("%s/%s.json", rec.UserID, rec.ID)
	if _, err := s.Archive.Archive(ctx, key, ann.Raw); err != nil {
		log.Printf("pipeline: annotation archive failed submission=%s: %v", rec.ID, err)
	}
}

// reportFailure is the best-effort terminal write for unexpected faults.
// It is skipped when nothing was claimed, when the fault was itself a
// status write, or when a terminal status already landed.
func (s *Service) reportFailure(r *run) {
	if !r.claimed || r.terminal || r.statusWriteFailed {
		return
	}
	id := submissions.SubmissionID(r.submissionID)
	if err := s.Submissions.UpdateStatus(context.Background(), id, submissions.StatusError); err != nil {
		log.Printf("pipeline: error status write failed submission=%s user=%s: %v", r.submissionID, r.userID, err)
	}
}
