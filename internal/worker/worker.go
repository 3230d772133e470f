// Package worker claims job batches from the queue, answers every query in
// them, and submits one result batch per job.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/gojiplus/get-weather-data/internal/observability"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
)

// JobSource is the worker's side of the queue transport.
type JobSource interface {
	// TryClaim takes one job batch without waiting. ok is false when the
	// queue is empty.
	TryClaim(ctx context.Context) (batch domain.JobBatch, ok bool, err error)
	PushResult(ctx context.Context, result domain.ResultBatch) error
	Close() error
}

// Searcher answers one ZIP query.
type Searcher interface {
	Search(ctx context.Context, q domain.ZipQuery) []domain.DailyRecord
}

// State is the worker's position in its claim/process/submit cycle.
type State int32

const (
	StateIdle State = iota
	StateClaimed
	StateProcessing
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClaimed:
		return "claimed"
	case StateProcessing:
		return "processing"
	case StateSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	// Consecutive transport failures tolerated before the loop gives up.
	maxTransportFailures = 5
)

// Worker runs one sequential claim loop.
type Worker struct {
	id       string
	source   JobSource
	searcher Searcher
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock

	state     atomic.Int32
	processed atomic.Int64
}

// New creates a Worker with a fresh random id.
func New(source JobSource, searcher Searcher, logger *slog.Logger, metrics *observability.Metrics) *Worker {
	id := uuid.NewString()
	return &Worker{
		id:       id,
		source:   source,
		searcher: searcher,
		logger:   logger.With("worker_id", id),
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
	}
}

// WithClock replaces the clock used for retry sleeps.
func (w *Worker) WithClock(c clockwork.Clock) *Worker {
	w.clock = c
	return w
}

// ID identifies the worker in result batches and logs.
func (w *Worker) ID() string { return w.id }

// State reports the current cycle position.
func (w *Worker) State() State { return State(w.state.Load()) }

// Processed is the number of batches this worker has submitted.
func (w *Worker) Processed() int64 { return w.processed.Load() }

// Run claims and processes batches until the queue is found empty, the
// context is cancelled, or the transport keeps failing.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	w.metrics.WorkerRunning.Inc()
	defer w.metrics.WorkerRunning.Dec()
	defer w.setState(StateIdle)

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopping", "reason", ctx.Err())
			return nil
		}

		w.setState(StateIdle)
		batch, ok, err := w.claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !ok {
			w.logger.Info("queue empty, worker exiting", "processed", w.Processed())
			return nil
		}

		if err := w.process(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (w *Worker) claim(ctx context.Context) (domain.JobBatch, bool, error) {
	var batch domain.JobBatch
	var ok bool
	err := w.withRetry(ctx, "claim job batch", func() error {
		var err error
		batch, ok, err = w.source.TryClaim(ctx)
		return err
	})
	if err == nil && ok {
		w.setState(StateClaimed)
		w.metrics.BatchesClaimed.Inc()
		w.logger.Info("claimed job batch", "batch_id", batch.ID, "queries", len(batch.Queries))
	}
	return batch, ok, err
}

func (w *Worker) process(ctx context.Context, batch domain.JobBatch) error {
	start := w.clock.Now()
	w.setState(StateProcessing)

	result := domain.ResultBatch{
		BatchID:  batch.ID,
		WorkerID: w.id,
		Records:  make(map[int][]domain.DailyRecord, len(batch.Queries)),
	}
	for i, q := range batch.Queries {
		result.Records[i] = w.searcher.Search(ctx, q)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if err := w.withRetry(ctx, "push result batch", func() error {
		return w.source.PushResult(ctx, result)
	}); err != nil {
		return err
	}

	w.setState(StateSubmitted)
	w.processed.Add(1)
	w.metrics.BatchesCompleted.Inc()
	w.metrics.BatchProcessingDuration.Observe(w.clock.Since(start).Seconds())
	w.logger.Info("submitted result batch", "batch_id", batch.ID, "rows", result.RowCount())
	return nil
}

// withRetry runs op, backing off exponentially between transport failures.
func (w *Worker) withRetry(ctx context.Context, what string, op func() error) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxTransportFailures; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Error(what+" failed", "error", err, "attempt", attempt)
		if attempt == maxTransportFailures {
			break
		}
		if !w.sleep(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-w.clock.After(d):
		return true
	}
}

// Pool runs several independent worker loops in one process.
type Pool struct {
	workers []*Worker
	ready   atomic.Bool
}

// NewPool groups workers; each should own its JobSource.
func NewPool(workers ...*Worker) *Pool {
	return &Pool{workers: workers}
}

// Run starts every worker and waits for all of them to exit. Errors from
// individual loops are aggregated.
func (p *Pool) Run(ctx context.Context) error {
	p.ready.Store(true)
	defer p.ready.Store(false)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	for _, w := range p.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("worker %s: %w", w.ID(), err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return result.ErrorOrNil()
}

// CheckReadiness reports whether the pool's loops are running.
func (p *Pool) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("worker pool is not running")
	}
	return nil
}

// Close closes every worker's job source.
func (p *Pool) Close() error {
	var result *multierror.Error
	for _, w := range p.workers {
		if err := w.source.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
