package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// A very small worker pool that runs submitted tasks.
// Used to fan out agent activation at boot.

type Task func(ctx context.Context) error

var (
	ErrNilTask    = errors.New("nil task")
	ErrQueueFull  = errors.New("worker queue full")
	ErrPoolClosed = errors.New("worker pool stopped")
)

type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	quit chan struct{}
	once sync.Once
	n    int
	log  *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	l := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{jobs: make(chan Task, workers*4), quit: make(chan struct{}), n: workers, log: &l}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					p.exec(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) exec(ctx context.Context, id int, task Task) {
	if task == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Error().Int("worker", id).Err(err).Msg("task error")
	}
}

// Stop signals workers to exit and waits for running tasks. Queued tasks
// that have not started are dropped.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit enqueues without blocking and fails when the queue is full.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	select {
	case <-p.quit:
		return ErrPoolClosed
	default:
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitWait enqueues, blocking until there is room, ctx ends or the pool stops.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	select {
	case <-p.quit:
		return ErrPoolClosed
	default:
	}
	select {
	case p.jobs <- task:
		return nil
	case <-p.quit:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
