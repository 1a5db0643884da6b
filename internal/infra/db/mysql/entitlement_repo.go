package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/inkwise/inkwise-backend/internal/domain/entitlements"
)

type EntitlementRepository struct {
	db *sql.DB
}

func NewEntitlementRepository(db *sql.DB) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

// GetByUser returns domain.ErrNotFound when no row exists
func (r *EntitlementRepository) GetByUser(ctx context.Context, userID string) (*domain.Entitlement, error) {
	const q = `
SELECT user_id, billing_customer_id, active_plan_id, remaining_analyses, current_period_end
FROM user_entitlements
WHERE user_id=? LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, userID)

	var e domain.Entitlement
	var customer, plan sql.NullString
	var remaining sql.NullInt64
	var periodEnd sql.NullTime
	if err := row.Scan(&e.UserID, &customer, &plan, &remaining, &periodEnd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	e.BillingCustomerID = stringPtr(customer)
	e.ActivePlanID = stringPtr(plan)
	e.RemainingAnalyses = int64Ptr(remaining)
	e.CurrentPeriodEnd = timePtr(periodEnd)
	return &e, nil
}

// InsertDefault lazily creates the zero-quota record. Idempotent: a
// concurrent or repeated insert for the same user is a no-op.
func (r *EntitlementRepository) InsertDefault(ctx context.Context, userID string) error {
	const q = `
INSERT INTO user_entitlements (user_id, billing_customer_id, active_plan_id, remaining_analyses, current_period_end)
VALUES (?, NULL, NULL, 0, NULL)
ON DUPLICATE KEY UPDATE user_id=user_id;
`
	_, err := r.db.ExecContext(ctx, q, userID)
	return err
}

// DecrementRemaining: guarded single write; NULL (unlimited) and zero
// rows are left untouched
func (r *EntitlementRepository) DecrementRemaining(ctx context.Context, userID string) error {
	const q = `
UPDATE user_entitlements
SET remaining_analyses = remaining_analyses - 1
WHERE user_id = ? AND remaining_analyses IS NOT NULL AND remaining_analyses > 0;`
	_, err := r.db.ExecContext(ctx, q, userID)
	return err
}

// UpdateActivePlan upserts plan, quota and period end
func (r *EntitlementRepository) UpdateActivePlan(ctx context.Context, userID string, planID *string, remaining *int64, periodEnd *time.Time) error {
	const q = `
INSERT INTO user_entitlements (user_id, billing_customer_id, active_plan_id, remaining_analyses, current_period_end)
VALUES (?, NULL, ?, ?, ?)
ON DUPLICATE KEY UPDATE
 active_plan_id=VALUES(active_plan_id),
 remaining_analyses=VALUES(remaining_analyses),
 current_period_end=VALUES(current_period_end);
`
	_, err := r.db.ExecContext(ctx, q, userID, nullString(planID), nullInt64(remaining), nullTime(periodEnd))
	return err
}
