package domain

import "strings"

// Plan is a tenant entitlement tier
type Plan string

const (
	PlanFreemium Plan = "freemium"
	PlanBasic    Plan = "basic"
	PlanPremium  Plan = "premium"
)

// DefaultPlan applies whenever no paid subscription can be established
const DefaultPlan = PlanFreemium

// Plans lists every known plan, cheapest first
var Plans = []Plan{PlanFreemium, PlanBasic, PlanPremium}

// ParsePlan maps a plan token to a known plan
func ParsePlan(s string) (Plan, bool) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Plans {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// IsPaid reports whether the plan requires a recurring charge
func (p Plan) IsPaid() bool {
	return p == PlanBasic || p == PlanPremium
}

// PlanSource records which input decided a resolved plan
type PlanSource string

const (
	PlanSourceHint    PlanSource = "hint"
	PlanSourceStore   PlanSource = "store"
	PlanSourceBilling PlanSource = "billing"
)

// Subscription is an app subscription as reported by the platform
type Subscription struct {
	ID     uint64
	Name   string
	Status string
}

// IsActive reports whether the platform considers the subscription active
func (s Subscription) IsActive() bool {
	return strings.EqualFold(s.Status, "active")
}

// ChargeRequest describes a recurring charge to submit for merchant approval
type ChargeRequest struct {
	Plan      Plan
	Name      string
	Price     string
	Currency  string
	ReturnURL string
	Test      bool
}

// BillingOutcome is the result of an upgrade request: exactly one of
// Redirect or Failure is set.
type BillingOutcome struct {
	Redirect *BillingRedirect
	Failure  *BillingFailure
}

// BillingRedirect carries the merchant approval URL
type BillingRedirect struct {
	URL string
}

// BillingFailure carries a merchant-visible error
type BillingFailure struct {
	Message string
	Details string
}
