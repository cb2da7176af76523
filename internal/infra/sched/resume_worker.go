package sched

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"autoapply-agent/internal/domain/ports/repository"
	"autoapply-agent/internal/domain/ports/usecase"
	"autoapply-agent/internal/infra/worker"
)

// ResumeWorker re-activates agents for subscribed users after a restart.
// Activations run on the worker pool so one slow immediate run does not
// hold back the rest.
type ResumeWorker struct {
	subs   repository.SubscriptionRepository
	agents usecase.AgentController
	pool   *worker.Pool
	log    *zerolog.Logger
}

func NewResumeWorker(subs repository.SubscriptionRepository, agents usecase.AgentController, pool *worker.Pool, logger *zerolog.Logger) *ResumeWorker {
	l := logger.With().Str("component", "ResumeWorker").Logger()
	return &ResumeWorker{subs: subs, agents: agents, pool: pool, log: &l}
}

// Run queues a start for every user with an active subscription and returns
// the number queued.
func (w *ResumeWorker) Run(ctx context.Context) (int, error) {
	ids, err := w.subs.ListActiveUserIDs(ctx, repository.NoTX)
	if err != nil {
		return 0, fmt.Errorf("list active users: %w", err)
	}
	queued := 0
	for _, id := range ids {
		userID := id
		err := w.pool.SubmitWait(ctx, func(ctx context.Context) error {
			return w.agents.Start(ctx, userID)
		})
		if err != nil {
			return queued, fmt.Errorf("queue agent start: %w", err)
		}
		queued++
	}
	w.log.Info().Int("count", queued).Msg("agents resumed")
	return queued, nil
}
