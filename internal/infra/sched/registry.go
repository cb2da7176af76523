package sched

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/ports/usecase"
	"autoapply-agent/internal/infra/metrics"
	"autoapply-agent/internal/infra/scheduler"
)

// Compile-time check
var _ usecase.AgentController = (*Registry)(nil)

// Registry holds at most one schedule per user.
type Registry struct {
	mu        sync.Mutex
	agents    map[string]*scheduler.Schedule
	base      context.Context
	run       scheduler.RunFunc
	interval  time.Duration
	newTicker scheduler.TickerFactory
	log       *zerolog.Logger
}

type Option func(*Registry)

// WithTickerFactory replaces the wall-clock ticker, mainly for tests.
func WithTickerFactory(f scheduler.TickerFactory) Option {
	return func(r *Registry) { r.newTicker = f }
}

// NewRegistry creates a registry whose schedules live until base is cancelled
// or they are stopped.
func NewRegistry(base context.Context, run scheduler.RunFunc, interval time.Duration, logger *zerolog.Logger, opts ...Option) *Registry {
	l := logger.With().Str("component", "AgentRegistry").Logger()
	r := &Registry{
		agents:    make(map[string]*scheduler.Schedule),
		base:      base,
		run:       run,
		interval:  interval,
		newTicker: scheduler.NewTimeTicker,
		log:       &l,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ValidateUserID accepts canonical UUIDs only.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty user id", domain.ErrInvalidArgument)
	}
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("%w: user id %q", domain.ErrInvalidArgument, userID)
	}
	return nil
}

// Start replaces any schedule the user has with a fresh one, then runs the
// agent once in the caller's goroutine. The old schedule is cancelled before
// the new one is armed. When a run of the old schedule is still finishing,
// the immediate run waits for it instead of being skipped by the run lock.
// Ticks of the new schedule that land on a busy run are still skipped.
func (r *Registry) Start(ctx context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	r.mu.Lock()
	old, replaced := r.agents[userID]
	if replaced {
		old.Stop()
	}
	s := scheduler.New(userID, r.interval, r.run, r.newTicker, r.log)
	s.Start(r.base)
	r.agents[userID] = s
	n := len(r.agents)
	r.mu.Unlock()

	metrics.SetAgentsActive(n)
	r.log.Info().Str("user_id", userID).Bool("replaced", replaced).Dur("interval", r.interval).Msg("agent started")

	if replaced {
		if err := old.Wait(ctx); err != nil {
			r.log.Warn().Err(err).Str("user_id", userID).Msg("replaced run did not finish, skipping immediate run")
			return fmt.Errorf("wait for replaced run: %w", err)
		}
	}
	s.RunNow(ctx)
	return nil
}

// Stop cancels the user's schedule. Unknown users are not an error.
func (r *Registry) Stop(userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	r.mu.Lock()
	s, ok := r.agents[userID]
	if ok {
		s.Stop()
		delete(r.agents, userID)
	}
	n := len(r.agents)
	r.mu.Unlock()

	if ok {
		metrics.SetAgentsActive(n)
		r.log.Info().Str("user_id", userID).Msg("agent stopped")
	}
	return nil
}

func (r *Registry) IsRunning(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.agents[userID]
	return ok && s.Active()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.agents)
}

// Shutdown stops every schedule and waits for their loops to exit or ctx to end.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	all := make([]*scheduler.Schedule, 0, len(r.agents))
	for id, s := range r.agents {
		s.Stop()
		all = append(all, s)
		delete(r.agents, id)
	}
	r.mu.Unlock()
	metrics.SetAgentsActive(0)

	for _, s := range all {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
