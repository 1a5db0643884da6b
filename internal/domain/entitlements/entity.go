package entitlements

import "time"

// Entitlement is the 1:1 usage record gating the analysis feature.
// ActivePlanID == nil means no active plan. RemainingAnalyses == nil
// means unlimited; a value is the count left in the billing period.
type Entitlement struct {
	UserID            string     `json:"user_id"`
	BillingCustomerID *string    `json:"billing_customer_id,omitempty"`
	ActivePlanID      *string    `json:"active_plan_id,omitempty"`
	RemainingAnalyses *int64     `json:"remaining_analyses,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
}

// Unlimited reports whether the record carries no quota ceiling.
func (e *Entitlement) Unlimited() bool {
	return e.RemainingAnalyses == nil
}
