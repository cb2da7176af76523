package model

import (
	"strings"
	"time"

	"autoapply-agent/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// FreeTrialApplicationsLimit applies to users without an active subscription.
const FreeTrialApplicationsLimit = 2

// Plan presets granted on checkout.
const (
	PlanStandard = "Standard"
	PlanPro      = "Pro"
)

var planLimits = map[string]int{
	PlanStandard: 50,
	PlanPro:      200,
}

// Subscription is the billing state of a user. The agent only reads it.
type Subscription struct {
	ID                 string
	UserID             string
	Status             SubscriptionStatus
	PlanName           string
	ApplicationsLimit  int
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewSubscription builds an active subscription for one of the known plans.
func NewSubscription(id, userID, plan string) (*Subscription, error) {
	limit, ok := PlanLimit(plan)
	if id == "" || userID == "" || !ok {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	end := now.AddDate(0, 1, 0)
	return &Subscription{
		ID:                 id,
		UserID:             userID,
		Status:             SubscriptionStatusActive,
		PlanName:           plan,
		ApplicationsLimit:  limit,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &end,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// PlanLimit returns the monthly application limit of a named plan.
func PlanLimit(plan string) (int, bool) {
	for name, limit := range planLimits {
		if strings.EqualFold(name, plan) {
			return limit, true
		}
	}
	return 0, false
}

func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == SubscriptionStatusActive
}
