package usecase

import (
	"math/rand"
	"testing"
	"time"

	"autoapply-agent/internal/domain/model"
)

func TestEvaluateEligibility(t *testing.T) {
	incomplete := completeProfile()
	incomplete.Phone = ""

	tests := []struct {
		name          string
		profile       *model.Profile
		sub           *model.Subscription
		count         int
		wantEligible  bool
		wantRemaining int
		wantReason    string
	}{
		{"free trial with nothing used", completeProfile(), nil, 0, true, 2, ""},
		{"free trial exhausted", completeProfile(), nil, 2, false, 0, ReasonQuotaExhausted},
		{"active plan", completeProfile(), activeSub(50), 10, true, 40, ""},
		{"active plan over limit", completeProfile(), activeSub(50), 60, false, 0, ReasonQuotaExhausted},
		{"canceled plan falls back to trial", completeProfile(), &model.Subscription{Status: model.SubscriptionStatusCanceled, ApplicationsLimit: 200}, 1, true, 1, ""},
		{"missing profile", nil, activeSub(50), 0, false, 50, ReasonProfileMissing},
		{"incomplete profile", incomplete, activeSub(50), 0, false, 50, ReasonProfileIncomplete},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateEligibility(tc.profile, tc.sub, tc.count)
			if got.Eligible != tc.wantEligible {
				t.Errorf("eligible = %v, want %v", got.Eligible, tc.wantEligible)
			}
			if got.QuotaRemaining != tc.wantRemaining {
				t.Errorf("quota remaining = %d, want %d", got.QuotaRemaining, tc.wantRemaining)
			}
			if got.Reason != tc.wantReason {
				t.Errorf("reason = %q, want %q", got.Reason, tc.wantReason)
			}
		})
	}
}

// Properties over random inputs: the verdict is deterministic, remaining
// quota never goes negative, and an incomplete profile is never eligible.
func TestEvaluateEligibilityProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []model.SubscriptionStatus{
		model.SubscriptionStatusActive, model.SubscriptionStatusCanceled, model.SubscriptionStatusPastDue,
	}

	for i := 0; i < 500; i++ {
		p := completeProfile()
		if rng.Intn(3) == 0 {
			p.Skills = nil
		}
		var sub *model.Subscription
		if rng.Intn(4) != 0 {
			sub = &model.Subscription{Status: statuses[rng.Intn(len(statuses))], ApplicationsLimit: rng.Intn(250)}
		}
		count := rng.Intn(300)

		a := EvaluateEligibility(p, sub, count)
		b := EvaluateEligibility(p, sub, count)
		if a != b {
			t.Fatalf("non-deterministic verdict: %+v vs %+v", a, b)
		}
		if a.QuotaRemaining < 0 {
			t.Fatalf("negative quota: %+v", a)
		}
		if !p.IsComplete() && a.Eligible {
			t.Fatalf("incomplete profile judged eligible: %+v", a)
		}
		if a.Eligible && a.QuotaRemaining == 0 {
			t.Fatalf("eligible with no quota: %+v", a)
		}
		if !sub.IsActive() && a.Limit != model.FreeTrialApplicationsLimit {
			t.Fatalf("inactive subscription should use the trial limit: %+v", a)
		}
	}
}

func TestPeriodStart(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	// 2024-03-01 05:00 in UTC+10 is still February in UTC.
	now := time.Date(2024, 3, 1, 5, 0, 0, 0, loc)
	want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if got := PeriodStart(now); !got.Equal(want) {
		t.Errorf("PeriodStart = %s, want %s", got, want)
	}
}
