package ai

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"autoapply-agent/internal/domain/ports/adapter"
	"autoapply-agent/internal/infra/metrics"
)

// Compile-time check
var _ adapter.AIServiceAdapter = (*limitedAI)(nil)

// limitedAI bounds concurrent calls with a semaphore that may be shared
// across providers, and records usage metrics per call.
type limitedAI struct {
	inner adapter.AIServiceAdapter
	sem   *semaphore.Weighted
}

// NewLimitedAI wraps inner. A nil sem means no bound.
func NewLimitedAI(inner adapter.AIServiceAdapter, sem *semaphore.Weighted) adapter.AIServiceAdapter {
	return &limitedAI{inner: inner, sem: sem}
}

func (l *limitedAI) Provider() string { return l.inner.Provider() }

func (l *limitedAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return "", adapter.Usage{}, err
		}
		defer l.sem.Release(1)
	}
	start := time.Now()
	reply, u, err := l.inner.ChatWithUsage(ctx, model, messages, opts)
	metrics.ObserveChatUsage(l.inner.Provider(), model, u.PromptTokens, u.CompletionTokens,
		time.Since(start).Milliseconds(), err == nil)
	return reply, u, err
}
