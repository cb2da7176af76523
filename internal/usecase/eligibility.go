// File: internal/usecase/eligibility.go
package usecase

import (
	"time"

	"autoapply-agent/internal/domain/model"
)

// Reasons an agent run is skipped.
const (
	ReasonProfileMissing    = "profile missing"
	ReasonProfileIncomplete = "profile incomplete"
	ReasonQuotaExhausted    = "application quota exhausted"
)

// Eligibility is the gate's verdict for one run.
type Eligibility struct {
	Eligible       bool
	Limit          int
	PeriodCount    int
	QuotaRemaining int
	Reason         string
}

// EvaluateEligibility decides whether a user may auto-apply now.
// periodCount is the number of applications created in the current period.
// Pure: no I/O, same inputs give the same verdict.
func EvaluateEligibility(profile *model.Profile, sub *model.Subscription, periodCount int) Eligibility {
	limit := ApplicationLimit(sub)
	if periodCount < 0 {
		periodCount = 0
	}
	remaining := limit - periodCount
	if remaining < 0 {
		remaining = 0
	}
	e := Eligibility{Limit: limit, PeriodCount: periodCount, QuotaRemaining: remaining}

	switch {
	case profile == nil:
		e.Reason = ReasonProfileMissing
	case !profile.IsComplete():
		e.Reason = ReasonProfileIncomplete
	case remaining == 0:
		e.Reason = ReasonQuotaExhausted
	default:
		e.Eligible = true
	}
	return e
}

// ApplicationLimit is the per-period cap: the plan limit for an active
// subscription, otherwise the free trial.
func ApplicationLimit(sub *model.Subscription) int {
	if sub.IsActive() {
		if sub.ApplicationsLimit < 0 {
			return 0
		}
		return sub.ApplicationsLimit
	}
	return model.FreeTrialApplicationsLimit
}

// PeriodStart is the first instant of the calendar month (UTC) containing now.
func PeriodStart(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
