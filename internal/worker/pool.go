// Package worker provides the asynchronous boundary around the pipeline:
// a fixed-size pool consumes per-user run requests from a queue, and a
// cron schedule enqueues daily runs for every active user.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"creatorpulse/internal/domain"
)

const defaultQueueCapacity = 64

// Request asks for one pipeline run on behalf of a user.
type Request struct {
	UserID     string
	MaxDrafts  int
	ContentAge time.Duration
}

// Runner is the pipeline entry point the pool drives.
type Runner interface {
	Run(ctx context.Context, userID string, maxDrafts int, contentAge time.Duration) (domain.RunResult, error)
}

// Pool executes queued run requests with a fixed number of workers.
// Runs for different users proceed concurrently and independently.
type Pool struct {
	runner Runner
	logger *slog.Logger
	queue  chan Request
	size   int

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewPool sizes the pool; size and queueCapacity fall back to sane
// defaults when non-positive.
func NewPool(runner Runner, size, queueCapacity int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 2
	}
	if queueCapacity <= 0 {
		queueCapacity = defaultQueueCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		runner: runner,
		logger: logger,
		queue:  make(chan Request, queueCapacity),
		size:   size,
	}
}

// Start launches the workers. They exit when the queue is closed or the
// context is cancelled; cancellation propagates into in-flight runs and
// abandons requests still queued.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.size; i++ {
			p.wg.Add(1)
			go p.work(ctx)
		}
	})
}

// Enqueue hands a request to the pool without blocking. It reports false
// when the queue is full; the caller decides whether to drop or retry.
func (p *Pool) Enqueue(req Request) bool {
	select {
	case p.queue <- req:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for in-flight runs to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.queue) })
	p.wg.Wait()
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()

	for {
		// Cancellation wins over remaining queued work.
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case req, ok := <-p.queue:
			if !ok {
				return
			}
			result, err := p.runner.Run(ctx, req.UserID, req.MaxDrafts, req.ContentAge)
			if err != nil {
				p.logger.Error("pipeline run aborted", "user", req.UserID, "error", err)
				continue
			}
			p.logger.Info("pipeline run finished",
				"user", req.UserID,
				"drafts", result.DraftsGenerated,
				"fetched", result.ItemsFetched,
				"unique", result.ItemsDeduped,
				"errors", len(result.Errors))
		}
	}
}
