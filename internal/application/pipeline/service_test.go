package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwise/inkwise-backend/internal/domain/entitlements"
	"github.com/inkwise/inkwise-backend/internal/domain/events"
	"github.com/inkwise/inkwise-backend/internal/domain/submissions"
	"github.com/inkwise/inkwise-backend/internal/domain/vision"
	"github.com/inkwise/inkwise-backend/internal/testsupport"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestService(subs *testsupport.SubmissionStore, ents *testsupport.EntitlementStore, vis *testsupport.VisionStub) *Service {
	return &Service{
		Submissions:  subs,
		Entitlements: ents,
		Vision:       vis,
		Clock:        testsupport.FixedClock{T: testNow},
	}
}

func pendingSubmission(id, userID string) *submissions.Submission {
	return &submissions.Submission{
		ID:          submissions.SubmissionID(id),
		UserID:      userID,
		ExerciseID:  "ex-1",
		ImageURL:    "https://cdn.example.com/" + id + ".jpg",
		Status:      submissions.StatusPending,
		SubmittedAt: testNow,
	}
}

func insertEvent(t *testing.T, id, userID string) *events.ChangeEvent {
	t.Helper()
	rec, err := json.Marshal(map[string]any{
		"id":        id,
		"user_id":   userID,
		"image_url": "https://cdn.example.com/" + id + ".jpg",
	})
	require.NoError(t, err)
	return &events.ChangeEvent{Type: events.Insert, Table: events.SubmissionsTable, Record: rec}
}

func activeEntitlement(userID string, remaining *int64) *entitlements.Entitlement {
	return &entitlements.Entitlement{
		UserID:            userID,
		ActivePlanID:      testsupport.StringPtr("plan-pro"),
		RemainingAnalyses: remaining,
		CurrentPeriodEnd:  testsupport.TimePtr(testNow.Add(24 * time.Hour)),
	}
}

func TestProcessIgnoresNonSubmissionInserts(t *testing.T) {
	subs := testsupport.NewSubmissionStore(pendingSubmission("sub-1", "user-1"))
	ents := testsupport.NewEntitlementStore(activeEntitlement("user-1", testsupport.Int64Ptr(5)))
	vis := &testsupport.VisionStub{}
	svc := newTestService(subs, ents, vis)

	cases := []struct {
		name string
		evt  *events.ChangeEvent
	}{
		{"update on submissions", &events.ChangeEvent{Type: events.Update, Table: events.SubmissionsTable}},
		{"delete on submissions", &events.ChangeEvent{Type: events.Delete, Table: events.SubmissionsTable}},
		{"insert on other table", &events.ChangeEvent{Type: events.Insert, Table: "profiles"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := svc.Process(context.Background(), tc.evt)
			require.NoError(t, err)
			assert.Equal(t, OutcomeIgnored, out.Code)
		})
	}

	// Nothing was touched.
	assert.Equal(t, submissions.StatusPending, subs.Status("sub-1"))
	assert.Equal(t, int64(5), *ents.Remaining("user-1"))
	assert.Equal(t, 0, vis.CallCount())
}

func TestProcessMalformedRecord(t *testing.T) {
	subs := testsupport.NewSubmissionStore()
	svc := newTestService(subs, testsupport.NewEntitlementStore(), &testsupport.VisionStub{})

	evt := &events.ChangeEvent{
		Type:   events.Insert,
		Table:  events.SubmissionsTable,
		Record: json.RawMessage(`{"id":"sub-1"}`), // no user_id, no image_url
	}
	_, err := svc.Process(context.Background(), evt)
	require.Error(t, err)
	assert.ErrorIs(t, err, events.ErrMalformed)
	// Nothing claimed, so nothing to mark error.
	assert.Empty(t, subs.StatusWrites)
}

func TestProcessCompletesAndDecrements(t *testing.T) {
	subs := testsupport.NewSubmissionStore(pendingSubmission("sub-1", "user-1"))
	ents := testsupport.NewEntitlementStore(activeEntitlement("user-1", testsupport.Int64Ptr(3)))
	vis := &testsupport.VisionStub{}
	svc := newTestService(subs, ents, vis)

	out, err := svc.Process(context.Background(), insertEvent(t, "sub-1", "user-1"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, out.Code)
	assert.Equal(t, "sub-1", out.SubmissionID)
	assert.True(t, out.TextDetected)
	assert.Equal(t, submissions.StatusComplete, subs.Status("sub-1"))
	assert.Equal(t, int64(2), *ents.Remaining("user-1"))
	assert.Equal(t, 1, vis.CallCount())
}

func TestProcessUnlimitedQuotaStaysNull(t *testing.T) {
	subs := testsupport.NewSubmissionStore(pendingSubmission("sub-1", "user-1"))
	ents := testsupport.NewEntitlementStore(activeEntitlement("user-1", nil))
	svc := newTestService(subs, ents, &testsupport.VisionStub{})

	out, err := svc.Process(context.Background(), insertEvent(t, "sub-1", "user-1"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, out.Code)
	assert.Nil(t, ents.Remaining("user-1"))
	assert.Equal(t, submissions.StatusComplete, subs.Status("sub-1"))
}

func TestProcessNoEntitlementInsertsDefaultAndDenies(t *testing.T) {
	subs := testsupport.NewSubmissionStore(pendingSubmission("sub-1", "user-new"))
	ents := testsupport.NewEntitlementStore()
	vis := &testsupport.VisionStub{}
	svc := newTestService(subs, ents, vis)

	out, err := svc.Process(context.Background(), insertEvent(t, "sub-1", "user-new"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeDenied, out.Code)
	assert.Equal(t, ReasonNoEntitlement, out.Reason)
	assert.Equal(t, submissions.StatusSubscriptionInactive, subs.Status("sub-1"))
	assert.Equal(t, 0, vis.CallCount())

	// The zero-quota default row now exists.
	assert.Equal(t, 1, ents.InsertCalls)
	require.NotNil(t, ents.Remaining("user-new"))
	assert.Equal(t, int64(0), *ents.Remaining("user-new"))
}

func TestProcessDenials(t *testing.T) {
	cases := []struct {
		name   string
		ent    *entitlements.Entitlement
		reason string
	}{
		{
			"no active plan",
			&entitlements.Entitlement{UserID: "user-1", RemainingAnalyses: testsupport.Int64Ptr(5)},
			ReasonNoActivePlan,
		},
		{
			"quota exhausted",
			activeEntitlement("user-1", testsupport.Int64Ptr(0)),
			ReasonQuotaExhausted,
		},
		{
			"billing period ended",
			&entitlements.Entitlement{
				UserID:            "user-1",
				ActivePlanID:      testsupport.StringPtr("plan-pro"),
				RemainingAnalyses: testsupport.Int64Ptr(5),
				CurrentPeriodEnd:  testsupport.TimePtr(testNow.Add(-time.Hour)),
			},
			ReasonPeriodEnded,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			subs := testsupport.NewSubmissionStore(pendingSubmission("sub-1", "user-1"))
			ents := testsupport.NewEntitlementStore(tc.ent)
			vis := &testsupport.VisionStub{}
			svc := newTestService(subs, ents, vis)

			out, err := svc.Process(context.Background(), insertEvent(t, "sub-1", "user-1"))
			require.NoError(t, err)

			assert.Equal(t, OutcomeDenied, out.Code)
			assert.Equal(t, tc.reason, out.Reason)
			assert.Equal(t, submissions.StatusSubscriptionInactive, subs.Status("sub-1"))
			// Denials never reach the vision service or touch the counter.
			assert.Equal(t, 0, vis.CallCount())
			if tc.ent.RemainingAnalyses != nil {
				assert.Equal(t, *tc.ent.RemainingAnalyses, *ents.Remaining("user-1"))
			}
		})
	}
}

func TestProcessDuplicateDeliveryIsNoOp(t *testing.T) {
	sub := pendingSubmission("sub-1", "user-1")
	sub.Status = submissions.StatusProcessing
	subs := testsupport.NewSubmissionStore(sub)
	ents := testsupport.NewEntitlementStore(activeEntitlement("user-1", testsupport.Int64Ptr(3)))
	vis := &testsupport.VisionStub{}
	svc := newTestService(subs, ents, vis)

	out, err := svc.Process(context.Background(), insertEvent(t, "sub-1", "user-1"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeDuplicate, out.Code)
	assert.Equal(t, submissions.StatusProcessing, subs.Status("sub-1"))
	assert.Equal(t, int64(3), *ents.Remaining("user-1"))
	assert.Equal(t, 0, vis.CallCount())
}

func TestProcessVisionFailureMarksError(t *testing.T) {
	subs := testsupport.NewSubmissionStore(pendingSubmission("sub-1", "user-1"))
	ents := testsupport.NewEntitlementStore(activeEntitlement("user-1", testsupport.Int64Ptr(3)))
	vis := &testsupport.VisionStub{Err: vision.ErrAnnotation}
	svc := newTestService(subs, ents, vis)

	_, err := svc.Process(context.Background(), insertEvent(t, "sub-1", "user-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, vision.ErrAnnotation)

	assert.Equal(t, submissions.StatusError, subs.Status("sub-1"))
	// Quota is only consumed on completion.
	assert.Equal(t, int64(3), *ents.Remaining("user-1"))
}

func TestProcessEntitlementLookupFailureMarksError(t *testing.T) {
	subs := testsupport.NewSubmissionStore(pendingSubmission("sub-1", "user-1"))
	ents := testsupport.NewEntitlementStore()
	ents.GetErr = errors.New("connection reset")
	svc := newTestService(subs, ents, &testsupport.VisionStub{})

	_, err := svc.Process(context.Background(), insertEvent(t, "sub-1", "user-1"))
	require.Error(t, err)
	assert.Equal(t, submissions.StatusError, subs.Status("sub-1"))
}

func TestProcessStatusWriteFailureIsNotRetried(t *testing.T) {
	subs := testsupport.NewSubmissionStore(pendingSubmission("sub-1", "user-1"))
	subs.UpdateErr = map[submissions.Status]error{
		submissions.StatusComplete: errors.New("write timeout"),
	}
	ents := testsupport.NewEntitlementStore(activeEntitlement("user-1", testsupport.Int64Ptr(3)))
	svc := newTestService(subs, ents, &testsupport.VisionStub{})

	_, err := svc.Process(context.Background(), insertEvent(t, "sub-1", "user-1"))
	require.Error(t, err)

	// The failed complete write was the fault itself; the reporter must
	// not pile an error write on top of it.
	assert.Empty(t, subs.StatusWrites)
	assert.Equal(t, int64(3), *ents.Remaining("user-1"))
}

func TestProcessDecrementFailureKeepsCompleteStatus(t *testing.T) {
	subs := testsupport.NewSubmissionStore(pendingSubmission("sub-1", "user-1"))
	ents := testsupport.NewEntitlementStore(activeEntitlement("user-1", testsupport.Int64Ptr(3)))
	ents.DecrementErr = errors.New("deadlock")
	svc := newTestService(subs, ents, &testsupport.VisionStub{})

	_, err := svc.Process(context.Background(), insertEvent(t, "sub-1", "user-1"))
	require.Error(t, err)

	// complete already landed; a late quota fault must not regress it.
	assert.Equal(t, submissions.StatusComplete, subs.Status("sub-1"))
}

type panickingVision struct{}

func (panickingVision) DetectDocumentText(context.Context, string) (*vision.Annotation, error) {
	panic("annotate exploded")
}

func TestProcessRecoversPanics(t *testing.T) {
	subs := testsupport.NewSubmissionStore(pendingSubmission("sub-1", "user-1"))
	ents := testsupport.NewEntitlementStore(activeEntitlement("user-1", testsupport.Int64Ptr(3)))
	svc := &Service{
		Submissions:  subs,
		Entitlements: ents,
		Vision:       panickingVision{},
		Clock:        testsupport.FixedClock{T: testNow},
	}

	_, err := svc.Process(context.Background(), insertEvent(t, "sub-1", "user-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.Equal(t, submissions.StatusError, subs.Status("sub-1"))
}

func TestProcessArchivesRawAnnotation(t *testing.T) {
	subs := testsupport.NewSubmissionStore(pendingSubmission("sub-1", "user-1"))
	ents := testsupport.NewEntitlementStore(activeEntitlement("user-1", testsupport.Int64Ptr(3)))
	archive := &testsupport.ArchiveStub{}
	svc := newTestService(subs, ents, &testsupport.VisionStub{})
	svc.Archive = archive

	out, err := svc.Process(context.Background(), insertEvent(t, "sub-1", "user-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, out.Code)
	require.Len(t, archive.Keys, 1)
	assert.Equal(t, "user-1/sub-1.json", archive.Keys[0])
}

func TestProcessArchiveFailureDoesNotFailRun(t *testing.T) {
	subs := testsupport.NewSubmissionStore(pendingSubmission("sub-1", "user-1"))
	ents := testsupport.NewEntitlementStore(activeEntitlement("user-1", testsupport.Int64Ptr(3)))
	svc := newTestService(subs, ents, &testsupport.VisionStub{})
	svc.Archive = &testsupport.ArchiveStub{Err: errors.New("bucket gone")}

	out, err := svc.Process(context.Background(), insertEvent(t, "sub-1", "user-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, out.Code)
	assert.Equal(t, submissions.StatusComplete, subs.Status("sub-1"))
}
