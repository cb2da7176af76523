package usecase

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/domain/ports/adapter"
	"autoapply-agent/internal/domain/ports/repository"
)

type agentHarness struct {
	*applyHarness
	profiles  *MockProfileRepo
	subs      *MockSubscriptionRepo
	discovery *fakeDiscovery
	waits     int32
}

func newAgentHarness(profile *model.Profile, sub *model.Subscription, urls []string) *agentHarness {
	h := &agentHarness{
		applyHarness: newApplyHarness(),
		profiles: &MockProfileRepo{FindByUserIDFunc: func(ctx context.Context, tx repository.Tx, userID string) (*model.Profile, error) {
			if profile == nil {
				return nil, domain.ErrNotFound
			}
			return profile, nil
		}},
		subs: &MockSubscriptionRepo{FindByUserIDFunc: func(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
			if sub == nil {
				return nil, domain.ErrNotFound
			}
			return sub, nil
		}},
		discovery: &fakeDiscovery{urls: urls},
	}
	return h
}

func (h *agentHarness) agent(opts ...AgentOption) *agentUC {
	uc := NewAgentUseCase(h.profiles, h.subs, h.tracker, h.discovery, h.useCase(true),
		AgentConfig{MaxCandidates: 10, Pacing: time.Second}, newTestLogger(), opts...)
	uc.wait = func(ctx context.Context, d time.Duration) bool {
		atomic.AddInt32(&h.waits, 1)
		return ctx.Err() == nil
	}
	return uc
}

func TestAgentUseCase_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("incomplete profile creates nothing and skips discovery", func(t *testing.T) {
		// --- Arrange ---
		p := completeProfile()
		p.Summary = ""
		h := newAgentHarness(p, activeSub(50), jobURLs(5))

		// --- Act ---
		summary, err := h.agent().RunOnce(ctx, testUserID)

		// --- Assert ---
		require.NoError(t, err)
		assert.False(t, summary.Eligible)
		assert.Equal(t, ReasonProfileIncomplete, summary.SkipReason)
		assert.Equal(t, 0, h.apps.size())
		assert.Equal(t, 0, h.discovery.callCount())
	})

	t.Run("missing profile is a skip, not an error", func(t *testing.T) {
		h := newAgentHarness(nil, nil, jobURLs(5))
		summary, err := h.agent().RunOnce(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, ReasonProfileMissing, summary.SkipReason)
		assert.Equal(t, 0, h.discovery.callCount())
	})

	t.Run("five good candidates produce five applied applications", func(t *testing.T) {
		h := newAgentHarness(completeProfile(), activeSub(50), jobURLs(5))

		summary, err := h.agent().RunOnce(ctx, testUserID)

		require.NoError(t, err)
		assert.Equal(t, 5, summary.Processed)
		assert.Equal(t, 5, summary.Applied)
		assert.Len(t, h.apps.byStatus(model.ApplicationStatusApplied), 5)
		assert.Equal(t, 5, h.logs.count(model.LogActionSubmit, model.LogStatusSuccess))
		assert.Equal(t, int32(4), atomic.LoadInt32(&h.waits), "pacing runs between candidates only")
		assert.Equal(t, 10, h.discovery.limit)
	})

	t.Run("one low-scoring candidate fails, the rest apply", func(t *testing.T) {
		urls := jobURLs(3)
		h := newAgentHarness(completeProfile(), activeSub(50), urls)
		low := urls[1]
		h.scorer.ScoreFunc = scoreByURL(map[string]int{low: 50})

		summary, err := h.agent().RunOnce(ctx, testUserID)

		require.NoError(t, err)
		assert.Equal(t, 2, summary.Applied)
		assert.Equal(t, 1, summary.Failed)
		failed := h.apps.byStatus(model.ApplicationStatusFailed)
		require.Len(t, failed, 1)
		assert.Equal(t, low, failed[0].JobURL)
		assert.Equal(t, "Low match score: 50", *failed[0].FailureReason)
	})

	t.Run("form analyzer failure on one candidate does not stop the run", func(t *testing.T) {
		h := newAgentHarness(completeProfile(), activeSub(50), jobURLs(2))
		var calls int32
		h.analyzer.AnalyzeFunc = func(ctx context.Context, shot []byte, markup string) (adapter.FormAnalysis, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return adapter.FormAnalysis{}, errBoom
			}
			return adapter.FormAnalysis{Success: true, Fields: map[string]string{"#email": "email"}}, nil
		}

		summary, _ := h.agent().RunOnce(ctx, testUserID)

		assert.Equal(t, 1, summary.Applied)
		failed := h.apps.byStatus(model.ApplicationStatusFailed)
		require.Len(t, failed, 1)
		assert.Equal(t, ReasonFormNotAnalyzed, *failed[0].FailureReason)
	})

	t.Run("quota limits how many candidates are processed, in order", func(t *testing.T) {
		urls := jobURLs(6)
		h := newAgentHarness(completeProfile(), activeSub(10), urls)
		h.apps.seed(testUserID, time.Now().UTC(), 7)

		summary, err := h.agent().RunOnce(ctx, testUserID)

		require.NoError(t, err)
		assert.Equal(t, 3, summary.QuotaRemaining)
		assert.Equal(t, 3, summary.Processed)
		var processed []string
		for _, a := range h.apps.byStatus(model.ApplicationStatusApplied) {
			processed = append(processed, a.JobURL)
		}
		assert.ElementsMatch(t, urls[:3], processed)
	})

	t.Run("exhausted quota creates nothing", func(t *testing.T) {
		h := newAgentHarness(completeProfile(), nil, jobURLs(4))
		h.apps.seed(testUserID, time.Now().UTC(), 2)

		summary, err := h.agent().RunOnce(ctx, testUserID)

		require.NoError(t, err)
		assert.Equal(t, ReasonQuotaExhausted, summary.SkipReason)
		assert.Equal(t, 2, h.apps.size())
		assert.Equal(t, 0, h.discovery.callCount())
	})

	t.Run("free trial processes at most two", func(t *testing.T) {
		h := newAgentHarness(completeProfile(), nil, jobURLs(5))
		summary, _ := h.agent().RunOnce(ctx, testUserID)
		assert.Equal(t, 2, summary.Processed)
	})

	t.Run("discovery failure yields an empty run", func(t *testing.T) {
		h := newAgentHarness(completeProfile(), activeSub(50), nil)
		h.discovery.err = errBoom
		summary, err := h.agent().RunOnce(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Processed)
		assert.Equal(t, 0, h.apps.size())
	})

	t.Run("discovery results beyond the candidate cap are ignored", func(t *testing.T) {
		h := newAgentHarness(completeProfile(), activeSub(50), jobURLs(14))
		summary, _ := h.agent().RunOnce(ctx, testUserID)
		assert.Equal(t, 10, summary.Discovered)
		assert.Equal(t, 10, summary.Processed)
	})

	t.Run("already attempted urls are skipped", func(t *testing.T) {
		urls := jobURLs(3)
		urls = append(urls, urls[0])
		h := newAgentHarness(completeProfile(), activeSub(50), urls)
		seen := &fakeSeen{}
		_ = seen.Mark(ctx, testUserID, urls[1])

		summary, _ := h.agent(WithSeenStore(seen)).RunOnce(ctx, testUserID)

		assert.Equal(t, 2, summary.Duplicates)
		assert.Equal(t, 2, summary.Processed)
		ok, _ := seen.Seen(ctx, testUserID, urls[2])
		assert.True(t, ok, "processed urls are remembered")
	})

	t.Run("urls whose application was never created stay eligible", func(t *testing.T) {
		urls := jobURLs(2)
		h := newAgentHarness(completeProfile(), activeSub(50), urls)
		h.apps.createErr = errBoom
		seen := &fakeSeen{}

		summary, err := h.agent(WithSeenStore(seen)).RunOnce(ctx, testUserID)

		require.NoError(t, err)
		assert.Equal(t, 0, summary.Applied)
		for _, u := range urls {
			ok, _ := seen.Seen(ctx, testUserID, u)
			assert.False(t, ok, u)
		}

		h.apps.createErr = nil
		summary, err = h.agent(WithSeenStore(seen)).RunOnce(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Duplicates)
		assert.Equal(t, 2, summary.Applied)
	})

	t.Run("a held run lock skips the run", func(t *testing.T) {
		h := newAgentHarness(completeProfile(), activeSub(50), jobURLs(2))
		lock := &fakeLocker{held: true}

		summary, err := h.agent(WithRunLock(lock)).RunOnce(ctx, testUserID)

		assert.ErrorIs(t, err, domain.ErrRunInProgress)
		assert.Equal(t, ReasonRunInProgress, summary.SkipReason)
		assert.Equal(t, 0, h.apps.size())
	})

	t.Run("the run lock is released afterwards", func(t *testing.T) {
		h := newAgentHarness(completeProfile(), activeSub(50), jobURLs(1))
		lock := &fakeLocker{}
		_, err := h.agent(WithRunLock(lock)).RunOnce(ctx, testUserID)
		require.NoError(t, err)
		assert.False(t, lock.held)
		assert.Equal(t, 1, lock.unlocks)
	})

	t.Run("an unreachable lock backend does not block the run", func(t *testing.T) {
		h := newAgentHarness(completeProfile(), activeSub(50), jobURLs(1))
		summary, err := h.agent(WithRunLock(&fakeLocker{err: errBoom})).RunOnce(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Applied)
	})

	t.Run("stopping mid-run finishes the current candidate only", func(t *testing.T) {
		h := newAgentHarness(completeProfile(), activeSub(50), jobURLs(4))
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		uc := h.agent()
		uc.wait = func(ctx context.Context, d time.Duration) bool {
			cancel()
			return false
		}

		summary, err := uc.RunOnce(runCtx, testUserID)

		require.NoError(t, err)
		assert.True(t, summary.Interrupted)
		assert.Equal(t, 1, summary.Processed)
		assert.Len(t, h.apps.byStatus(model.ApplicationStatusApplied), 1)
		assert.True(t, h.browser.allClosed())
	})

	t.Run("profile lookup errors fail the run", func(t *testing.T) {
		h := newAgentHarness(completeProfile(), activeSub(50), jobURLs(1))
		h.profiles.FindByUserIDFunc = func(ctx context.Context, tx repository.Tx, userID string) (*model.Profile, error) {
			return nil, domain.ErrOperationFailed
		}
		_, err := h.agent().RunOnce(ctx, testUserID)
		assert.True(t, errors.Is(err, domain.ErrOperationFailed))
	})

	t.Run("a summary is sent when something was processed", func(t *testing.T) {
		h := newAgentHarness(completeProfile(), activeSub(50), jobURLs(2))
		n := &fakeNotifier{err: errBoom}
		summary, err := h.agent(WithRunNotifier(n)).RunOnce(ctx, testUserID)
		require.NoError(t, err)
		require.Len(t, n.sent, 1)
		assert.Equal(t, summary.RunID, n.sent[0].RunID)
		assert.Equal(t, 2, n.sent[0].Applied)
	})
}

// scoreByURL scores a page by the job URL embedded in the fake markup.
func scoreByURL(scores map[string]int) func(ctx context.Context, markup string, p *model.Profile) (adapter.MatchResult, error) {
	return func(ctx context.Context, markup string, p *model.Profile) (adapter.MatchResult, error) {
		for u, s := range scores {
			if strings.Contains(markup, `"`+u+`"`) {
				return adapter.MatchResult{IsMatch: true, MatchScore: s}, nil
			}
		}
		return adapter.MatchResult{IsMatch: true, MatchScore: 90}, nil
	}
}

func TestSleepCtx(t *testing.T) {
	assert.True(t, sleepCtx(context.Background(), 0))
	assert.True(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepCtx(ctx, time.Hour))
}
