// File: internal/usecase/agent_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/domain/ports/adapter"
	"autoapply-agent/internal/domain/ports/repository"
	"autoapply-agent/internal/infra/logging"
	"autoapply-agent/internal/infra/metrics"
)

// Compile-time check
var _ AgentUseCase = (*agentUC)(nil)

const (
	DefaultMaxCandidates = 10
	DefaultPacing        = 5 * time.Second
	DefaultRunLockTTL    = 2 * time.Hour

	ReasonRunInProgress = "previous run still in progress"
)

// AgentUseCase performs one run of a user's agent: gate, discover, apply.
type AgentUseCase interface {
	// RunOnce never fails because of an individual candidate. It returns
	// domain.ErrRunInProgress when another run holds the user's lock.
	RunOnce(ctx context.Context, userID string) (*model.RunSummary, error)
}

type AgentConfig struct {
	MaxCandidates int
	Pacing        time.Duration
	RunLockTTL    time.Duration
}

type AgentOption func(*agentUC)

// WithSeenStore skips job URLs already attempted for the user.
func WithSeenStore(s adapter.SeenStore) AgentOption {
	return func(uc *agentUC) { uc.seen = s }
}

// WithRunLock prevents overlapping runs for the same user.
func WithRunLock(l adapter.Locker) AgentOption {
	return func(uc *agentUC) { uc.locker = l }
}

func WithRunNotifier(n adapter.RunNotifier) AgentOption {
	return func(uc *agentUC) { uc.notifier = n }
}

type agentUC struct {
	profiles  repository.ProfileRepository
	subs      repository.SubscriptionRepository
	tracker   ApplicationTracker
	discovery adapter.JobDiscovery
	apply     ApplyUseCase
	seen      adapter.SeenStore
	locker    adapter.Locker
	notifier  adapter.RunNotifier
	cfg       AgentConfig
	log       *zerolog.Logger
	now       func() time.Time
	wait      func(ctx context.Context, d time.Duration) bool
}

func NewAgentUseCase(
	profiles repository.ProfileRepository,
	subs repository.SubscriptionRepository,
	tracker ApplicationTracker,
	discovery adapter.JobDiscovery,
	apply ApplyUseCase,
	cfg AgentConfig,
	logger *zerolog.Logger,
	opts ...AgentOption,
) *agentUC {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.Pacing < 0 {
		cfg.Pacing = 0
	}
	if cfg.RunLockTTL <= 0 {
		cfg.RunLockTTL = DefaultRunLockTTL
	}
	l := logger.With().Str("component", "AgentUseCase").Logger()
	uc := &agentUC{
		profiles:  profiles,
		subs:      subs,
		tracker:   tracker,
		discovery: discovery,
		apply:     apply,
		cfg:       cfg,
		log:       &l,
		now:       func() time.Time { return time.Now().UTC() },
		wait:      sleepCtx,
	}
	for _, o := range opts {
		o(uc)
	}
	return uc
}

func (uc *agentUC) RunOnce(ctx context.Context, userID string) (*model.RunSummary, error) {
	summary := &model.RunSummary{RunID: ulid.Make().String(), UserID: userID, StartedAt: uc.now()}
	ctx = logging.WithRunID(logging.WithUserID(ctx, userID), summary.RunID)
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "AgentUseCase.RunOnce")()

	if uc.locker != nil {
		key := runLockKey(userID)
		token, err := uc.locker.TryLock(ctx, key, uc.cfg.RunLockTTL)
		switch {
		case errors.Is(err, domain.ErrLockNotAcquired):
			log.Info().Msg("previous run still in progress, skipping")
			metrics.IncAgentRun("locked")
			summary.SkipReason = ReasonRunInProgress
			summary.FinishedAt = uc.now()
			return summary, domain.ErrRunInProgress
		case err != nil:
			log.Warn().Err(err).Msg("run lock unavailable, continuing without it")
		default:
			defer func() {
				if err := uc.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn().Err(err).Msg("release run lock")
				}
			}()
		}
	}

	profile, err := uc.profiles.FindByUserID(ctx, repository.NoTX, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		metrics.IncAgentRun("error")
		return nil, fmt.Errorf("load profile: %w", err)
	}
	sub, err := uc.subs.FindByUserID(ctx, repository.NoTX, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		metrics.IncAgentRun("error")
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	count, err := uc.tracker.CountInPeriod(ctx, userID, PeriodStart(summary.StartedAt))
	if err != nil {
		metrics.IncAgentRun("error")
		return nil, fmt.Errorf("count applications in period: %w", err)
	}

	gate := EvaluateEligibility(profile, sub, count)
	summary.Eligible = gate.Eligible
	summary.QuotaRemaining = gate.QuotaRemaining
	if !gate.Eligible {
		summary.SkipReason = gate.Reason
		summary.FinishedAt = uc.now()
		ev := log.Info().Str("reason", gate.Reason).Int("limit", gate.Limit).Int("used", gate.PeriodCount)
		if profile != nil && gate.Reason == ReasonProfileIncomplete {
			ev = ev.Strs("missing", profile.MissingFields())
		}
		ev.Msg("user not eligible for auto-apply")
		metrics.IncAgentRun("ineligible")
		return summary, nil
	}

	candidates := uc.discover(ctx, profile, log)
	summary.Discovered = len(candidates)
	candidates, summary.Duplicates = uc.dedup(ctx, userID, candidates, log)
	toProcess := min(len(candidates), gate.QuotaRemaining)
	metrics.AddAgentCandidates("duplicate", summary.Duplicates)
	metrics.AddAgentCandidates("over_quota", len(candidates)-toProcess)

	log.Info().
		Int("discovered", summary.Discovered).
		Int("to_process", toProcess).
		Int("quota_remaining", gate.QuotaRemaining).
		Msg("processing job candidates")

	// In-flight candidates finish even if the schedule is stopped.
	applyCtx := context.WithoutCancel(ctx)
	for i, jobURL := range candidates[:toProcess] {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
		app := uc.applyOne(applyCtx, profile, jobURL, log)
		summary.Processed++
		metrics.AddAgentCandidates("processed", 1)
		if app != nil && app.Status == model.ApplicationStatusApplied {
			summary.Applied++
		} else {
			summary.Failed++
		}
		if i < toProcess-1 && !uc.wait(ctx, uc.cfg.Pacing) {
			summary.Interrupted = true
			break
		}
	}

	summary.FinishedAt = uc.now()
	metrics.IncAgentRun("completed")
	metrics.ObserveAgentRun(summary.Duration().Seconds())
	log.Info().
		Int("processed", summary.Processed).
		Int("applied", summary.Applied).
		Int("failed", summary.Failed).
		Bool("interrupted", summary.Interrupted).
		Dur("took", summary.Duration()).
		Msg("agent run finished")
	uc.notify(ctx, summary, log)
	return summary, nil
}

// applyOne isolates a candidate: a panic or creation error is logged and
// the run moves on.
func (uc *agentUC) applyOne(ctx context.Context, profile *model.Profile, jobURL string, log *zerolog.Logger) (app *model.Application) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("job_url", jobURL).Msg("candidate panicked")
			app = nil
		}
	}()

	app, err := uc.apply.Apply(ctx, profile, jobURL)
	if app != nil {
		// Only a URL with a recorded application is remembered; one that
		// never got a row stays eligible for the next cycle.
		uc.markSeen(ctx, profile.UserID, jobURL, log)
	}
	if err != nil {
		log.Error().Err(err).Str("job_url", jobURL).Msg("could not start application")
		return nil
	}
	return app
}

func (uc *agentUC) discover(ctx context.Context, profile *model.Profile, log *zerolog.Logger) []string {
	urls, err := uc.discovery.Search(ctx, profile, uc.cfg.MaxCandidates)
	if err != nil {
		log.Warn().Err(err).Msg("job discovery failed, no candidates this run")
		return nil
	}
	if len(urls) > uc.cfg.MaxCandidates {
		urls = urls[:uc.cfg.MaxCandidates]
	}
	return urls
}

// dedup drops blank and repeated URLs and, when a SeenStore is configured,
// URLs already attempted for the user. Order is preserved.
func (uc *agentUC) dedup(ctx context.Context, userID string, urls []string, log *zerolog.Logger) ([]string, int) {
	out := make([]string, 0, len(urls))
	seenInRun := make(map[string]struct{}, len(urls))
	dropped := 0
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			dropped++
			continue
		}
		if _, dup := seenInRun[u]; dup {
			dropped++
			continue
		}
		seenInRun[u] = struct{}{}
		if uc.seen != nil {
			seen, err := uc.seen.Seen(ctx, userID, u)
			if err != nil {
				log.Warn().Err(err).Msg("dedup lookup failed, keeping candidate")
			} else if seen {
				dropped++
				continue
			}
		}
		out = append(out, u)
	}
	return out, dropped
}

func (uc *agentUC) markSeen(ctx context.Context, userID, jobURL string, log *zerolog.Logger) {
	if uc.seen == nil {
		return
	}
	if err := uc.seen.Mark(ctx, userID, jobURL); err != nil {
		log.Warn().Err(err).Msg("mark job as seen")
	}
}

func (uc *agentUC) notify(ctx context.Context, summary *model.RunSummary, log *zerolog.Logger) {
	if uc.notifier == nil || summary.Processed == 0 {
		return
	}
	if err := uc.notifier.NotifyRun(context.WithoutCancel(ctx), *summary); err != nil {
		log.Warn().Err(err).Msg("send run summary")
	}
}

func runLockKey(userID string) string {
	return "agent:run:" + userID
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
