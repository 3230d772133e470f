// Package memory is an in-process job and result queue. It backs the HTTP
// queue listener and serves as the transport in tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/gojiplus/get-weather-data/internal/domain"
)

// ErrClosed is returned by operations on a queue that was shut down.
var ErrClosed = errors.New("queue is shut down")

// Queue holds pending job batches and submitted result batches in FIFO order.
type Queue struct {
	mu      sync.Mutex
	jobs    []domain.JobBatch
	results []domain.ResultBatch
	closed  bool
}

// NewQueue returns an empty, open queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Start reopens the queue and discards anything left from an earlier run.
func (q *Queue) Start(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs, q.results, q.closed = nil, nil, false
	return nil
}

func (q *Queue) PublishJob(_ context.Context, b domain.JobBatch) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.jobs = append(q.jobs, b)
	return nil
}

func (q *Queue) TryClaim(_ context.Context) (domain.JobBatch, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domain.JobBatch{}, false, ErrClosed
	}
	if len(q.jobs) == 0 {
		return domain.JobBatch{}, false, nil
	}
	b := q.jobs[0]
	q.jobs = q.jobs[1:]
	return b, true, nil
}

func (q *Queue) PushResult(_ context.Context, r domain.ResultBatch) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.results = append(q.results, r)
	return nil
}

func (q *Queue) TryResult(_ context.Context) (domain.ResultBatch, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domain.ResultBatch{}, false, ErrClosed
	}
	if len(q.results) == 0 {
		return domain.ResultBatch{}, false, nil
	}
	r := q.results[0]
	q.results = q.results[1:]
	return r, true, nil
}

// Pending reports the number of unclaimed jobs and undrained results.
func (q *Queue) Pending() (jobs, results int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs), len(q.results)
}

// Shutdown discards queued items and rejects further operations.
func (q *Queue) Shutdown(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs, q.results, q.closed = nil, nil, true
	return nil
}

// Close is a no-op for the worker side; the queue's owner shuts it down.
func (q *Queue) Close() error {
	return nil
}
