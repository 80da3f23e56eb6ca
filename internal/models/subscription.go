package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PlanFree    = "free"
	PlanCreator = "creator"
	PlanStudio  = "studio"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription mirrors the user's Stripe subscription state. Maintained only
// by the Stripe webhook handler; read for entitlement checks.
type Subscription struct {
	UserID               uuid.UUID
	StripeCustomerID     string
	StripeSubscriptionID string
	Plan                 string
	Status               string
	CurrentPeriodEnd     time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (s *Subscription) Active() bool {
	return s.Status == SubscriptionStatusActive && time.Now().Before(s.CurrentPeriodEnd)
}
