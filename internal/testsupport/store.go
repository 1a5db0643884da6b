// Package testsupport provides in-memory repositories and stub clients
// shared by service and router tests.
package testsupport

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/inkwise/inkwise-backend/internal/domain/entitlements"
	"github.com/inkwise/inkwise-backend/internal/domain/feedback"
	"github.com/inkwise/inkwise-backend/internal/domain/submissions"
	"github.com/inkwise/inkwise-backend/internal/domain/vision"
)

// FixedClock returns the same instant for every Now call.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// Pointer helpers for nullable entitlement fields.

func StringPtr(s string) *string     { return &s }
func Int64Ptr(n int64) *int64        { return &n }
func TimePtr(t time.Time) *time.Time { return &t }

// SubmissionStore is an in-memory submissions.Repository.
type SubmissionStore struct {
	mu   sync.Mutex
	Subs map[submissions.SubmissionID]*submissions.Submission

	ClaimErr error
	// UpdateErr injects a failure when writing the given status.
	UpdateErr map[submissions.Status]error
	// StatusWrites records every successful UpdateStatus in order.
	StatusWrites []submissions.Status
}

func NewSubmissionStore(subs ...*submissions.Submission) *SubmissionStore {
	s := &SubmissionStore{Subs: make(map[submissions.SubmissionID]*submissions.Submission)}
	for _, sub := range subs {
		cp := *sub
		s.Subs[sub.ID] = &cp
	}
	return s
}

func (s *SubmissionStore) Get(_ context.Context, id submissions.SubmissionID) (*submissions.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.Subs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *sub
	return &cp, nil
}

func (s *SubmissionStore) Latest(_ context.Context, userID string, limit int) ([]*submissions.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*submissions.Submission
	for _, sub := range s.Subs {
		if sub.UserID == userID {
			cp := *sub
			out = append(out, &cp)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *SubmissionStore) ClaimPending(_ context.Context, id submissions.SubmissionID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ClaimErr != nil {
		return false, s.ClaimErr
	}
	sub, ok := s.Subs[id]
	if !ok || sub.Status != submissions.StatusPending {
		return false, nil
	}
	sub.Status = submissions.StatusProcessing
	return true, nil
}

func (s *SubmissionStore) UpdateStatus(_ context.Context, id submissions.SubmissionID, status submissions.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.UpdateErr[status]; err != nil {
		return err
	}
	if sub, ok := s.Subs[id]; ok {
		sub.Status = status
	}
	s.StatusWrites = append(s.StatusWrites, status)
	return nil
}

func (s *SubmissionStore) Release(_ context.Context, id submissions.SubmissionID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.Subs[id]
	if !ok || sub.Status != submissions.StatusProcessing {
		return false, nil
	}
	sub.Status = submissions.StatusPending
	return true, nil
}

// Status returns the current stored status.
func (s *SubmissionStore) Status(id submissions.SubmissionID) submissions.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.Subs[id]; ok {
		return sub.Status
	}
	return ""
}

// EntitlementStore is an in-memory entitlements.Repository.
type EntitlementStore struct {
	mu   sync.Mutex
	Ents map[string]*entitlements.Entitlement

	GetErr       error // injected lookup failure (other than not-found)
	DecrementErr error
	InsertCalls  int
}

func NewEntitlementStore(ents ...*entitlements.Entitlement) *EntitlementStore {
	s := &EntitlementStore{Ents: make(map[string]*entitlements.Entitlement)}
	for _, e := range ents {
		cp := *e
		s.Ents[e.UserID] = &cp
	}
	return s
}

func (s *EntitlementStore) GetByUser(_ context.Context, userID string) (*entitlements.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	e, ok := s.Ents[userID]
	if !ok {
		return nil, entitlements.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *EntitlementStore) InsertDefault(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InsertCalls++
	if _, ok := s.Ents[userID]; ok {
		return nil
	}
	zero := int64(0)
	s.Ents[userID] = &entitlements.Entitlement{UserID: userID, RemainingAnalyses: &zero}
	return nil
}

func (s *EntitlementStore) DecrementRemaining(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DecrementErr != nil {
		return s.DecrementErr
	}
	e, ok := s.Ents[userID]
	if !ok || e.RemainingAnalyses == nil || *e.RemainingAnalyses <= 0 {
		return nil
	}
	n := *e.RemainingAnalyses - 1
	e.RemainingAnalyses = &n
	return nil
}

func (s *EntitlementStore) UpdateActivePlan(_ context.Context, userID string, planID *string, remaining *int64, periodEnd *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.Ents[userID]
	if !ok {
		e = &entitlements.Entitlement{UserID: userID}
		s.Ents[userID] = e
	}
	e.ActivePlanID = planID
	e.RemainingAnalyses = remaining
	e.CurrentPeriodEnd = periodEnd
	return nil
}

// Remaining returns the stored remaining count, or nil.
func (s *EntitlementStore) Remaining(userID string) *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.Ents[userID]; ok {
		return e.RemainingAnalyses
	}
	return nil
}

// VisionStub is a counting vision.Client fake.
type VisionStub struct {
	mu    sync.Mutex
	Calls int
	Ann   *vision.Annotation
	Err   error
}

func (v *VisionStub) DetectDocumentText(_ context.Context, _ string) (*vision.Annotation, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Calls++
	if v.Err != nil {
		return nil, v.Err
	}
	if v.Ann != nil {
		return v.Ann, nil
	}
	return &vision.Annotation{Text: "practice text", TextDetected: true, Raw: []byte(`{}`)}, nil
}

// CallCount returns how often the vision service was invoked.
func (v *VisionStub) CallCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.Calls
}

// ArchiveStub records archived keys.
type ArchiveStub struct {
	mu   sync.Mutex
	Keys []string
	Err  error
}

func (a *ArchiveStub) Archive(_ context.Context, key string, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return "", a.Err
	}
	a.Keys = append(a.Keys, key)
	return "http://archive.local/" + key, nil
}

// FeedbackStore is an in-memory feedback.Repository.
type FeedbackStore struct {
	mu      sync.Mutex
	Items   []*feedback.Feedback
	SaveErr error
}

func (s *FeedbackStore) Save(_ context.Context, f *feedback.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	cp := *f
	s.Items = append(s.Items, &cp)
	return nil
}

func (s *FeedbackStore) LatestBySubmission(_ context.Context, submissionID string) (*feedback.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.Items) - 1; i >= 0; i-- {
		if s.Items[i].SubmissionID == submissionID {
			cp := *s.Items[i]
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

// CoachStub is a counting ai.Client fake.
type CoachStub struct {
	mu    sync.Mutex
	Calls int
	Body  string
	Err   error
}

func (c *CoachStub) Coach(_ context.Context, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return "", c.Err
	}
	if c.Body != "" {
		return c.Body, nil
	}
	return "Nice steady baseline. Practice consistent letter spacing next.", nil
}
