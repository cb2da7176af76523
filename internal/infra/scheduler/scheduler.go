package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"autoapply-agent/internal/domain"
)

// RunFunc performs one agent run for a user.
type RunFunc func(ctx context.Context, userID string) error

// Ticker is the part of *time.Ticker a Schedule needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates the ticker for a schedule.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the production TickerFactory.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Schedule runs a user's agent every interval until stopped.
type Schedule struct {
	userID    string
	interval  time.Duration
	run       RunFunc
	newTicker TickerFactory
	log       *zerolog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	runs   sync.WaitGroup // RunNow calls in flight
}

// New constructs a schedule. If interval <= 0 it defaults to 4 hours.
func New(userID string, interval time.Duration, run RunFunc, newTicker TickerFactory, logger *zerolog.Logger) *Schedule {
	if interval <= 0 {
		interval = 4 * time.Hour
	}
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	l := logger.With().Str("component", "Schedule").Str("user_id", userID).Logger()
	return &Schedule{
		userID:    userID,
		interval:  interval,
		run:       run,
		newTicker: newTicker,
		log:       &l,
		done:      make(chan struct{}),
	}
}

// Start arms the ticker and begins the loop in a background goroutine.
// Calling Start more than once has no effect.
func (s *Schedule) Start(parentCtx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(parentCtx)
	ticker := s.newTicker(s.interval)
	go s.loop(ticker)
}

// Stop cancels the pending tick and any candidate loop in progress.
// It does not wait; use Done for that.
func (s *Schedule) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		// never started
		s.ctx, s.cancel = context.WithCancel(context.Background())
		close(s.done)
	}
	s.cancel()
}

// Done is closed when the loop has exited.
func (s *Schedule) Done() <-chan struct{} { return s.done }

// Active reports whether the schedule is started and not stopped.
func (s *Schedule) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx != nil && s.ctx.Err() == nil
}

// RunNow performs one run in the caller's goroutine. The run is cancelled
// when either the schedule is stopped or ctx ends.
func (s *Schedule) RunNow(ctx context.Context) {
	s.mu.Lock()
	base := s.ctx
	if base == nil || base.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.runs.Add(1)
	s.mu.Unlock()
	defer s.runs.Done()

	runCtx, cancel := context.WithCancel(base)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	s.runOnce(runCtx)
}

// Wait blocks until a stopped schedule is idle: the loop has exited and no
// RunNow call is still executing. Runs may outlive Stop by finishing their
// current candidate. It returns ctx.Err() if ctx ends first.
func (s *Schedule) Wait(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		<-s.done
		s.runs.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Schedule) loop(ticker Ticker) {
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Debug().Dur("interval", s.interval).Msg("schedule started")
	for {
		select {
		case <-s.ctx.Done():
			s.log.Debug().Msg("schedule stopped")
			return
		case <-ticker.C():
			// A tick and a stop can be ready together.
			if s.ctx.Err() != nil {
				return
			}
			s.runOnce(s.ctx)
		}
	}
}

func (s *Schedule) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("agent run panicked")
		}
	}()
	err := s.run(ctx, s.userID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRunInProgress):
		s.log.Info().Msg("run skipped, previous run still in progress")
	default:
		s.log.Error().Err(err).Msg("agent run failed")
	}
}
