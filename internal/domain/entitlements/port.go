package entitlements

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no entitlement row exists for the user.
var ErrNotFound = errors.New("entitlement not found")

// Repository port (interface untuk persistence)
type Repository interface {
	// GetByUser returns ErrNotFound when the row is absent.
	GetByUser(ctx context.Context, userID string) (*Entitlement, error)

	// InsertDefault lazily creates the zero-quota denial record
	// (plan null, remaining 0). It is idempotent.
	InsertDefault(ctx context.Context, userID string) error

	// DecrementRemaining subtracts one analysis as a conditional single
	// write: it touches nothing when remaining is NULL (unlimited) or
	// already zero, so the count never goes below zero.
	DecrementRemaining(ctx context.Context, userID string) error

	// UpdateActivePlan upserts the plan, quota and period end for a user.
	UpdateActivePlan(ctx context.Context, userID string, planID *string, remaining *int64, periodEnd *time.Time) error
}
