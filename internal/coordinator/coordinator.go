// Package coordinator publishes ZIP queries as job batches and drains the
// workers' results into the output file.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/gojiplus/get-weather-data/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Broker is the coordinator's side of the queue transport.
type Broker interface {
	// Start brings the queue up and clears anything left from earlier runs.
	Start(ctx context.Context) error
	PublishJob(ctx context.Context, b domain.JobBatch) error
	// TryResult takes one result batch without waiting. ok is false when
	// none is available.
	TryResult(ctx context.Context) (r domain.ResultBatch, ok bool, err error)
	Shutdown(ctx context.Context) error
}

// Options configures a Coordinator. A zero BatchSize or PollInterval keeps
// the default; a zero ShutdownGrace shuts the queue down without pausing.
type Options struct {
	BatchSize     int
	PollInterval  time.Duration
	ShutdownGrace time.Duration
	Clock         clockwork.Clock
	Logger        *slog.Logger
	Metrics       *observability.Metrics
}

// Summary describes a finished run.
type Summary struct {
	Batches     int
	Queries     int
	Received    int
	Rows        int
	Interrupted bool
}

// Complete reports whether every query was answered.
func (s Summary) Complete() bool {
	return !s.Interrupted && s.Received >= s.Queries
}

// Coordinator drives one run from input queries to output records.
type Coordinator struct {
	broker        Broker
	batchSize     int
	pollInterval  time.Duration
	shutdownGrace time.Duration
	clock         clockwork.Clock
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// New creates a Coordinator.
func New(broker Broker, opts Options) *Coordinator {
	c := &Coordinator{
		broker:        broker,
		batchSize:     opts.BatchSize,
		pollInterval:  opts.PollInterval,
		shutdownGrace: opts.ShutdownGrace,
		clock:         opts.Clock,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
	if c.batchSize <= 0 {
		c.batchSize = 10
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 100 * time.Millisecond
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = observability.NewMetricsForTesting()
	}
	return c
}

// Run starts the queue, publishes queries, drains results into out, and
// shuts the queue down after the grace period. Cancelling ctx stops the
// drain early; records already received stay written.
func (c *Coordinator) Run(ctx context.Context, queries []domain.ZipQuery, out RecordWriter) (Summary, error) {
	sum := Summary{Queries: len(queries)}

	if err := c.broker.Start(ctx); err != nil {
		return sum, fmt.Errorf("%w: %w", domain.ErrQueueUnavailable, err)
	}
	c.logger.Info("queue started", "queries", len(queries), "batch_size", c.batchSize)

	runErr := c.publishAndDrain(ctx, queries, out, &sum)

	c.logger.Info("waiting before queue shutdown", "grace", c.shutdownGrace)
	c.wait(c.shutdownGrace)

	if err := c.broker.Shutdown(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("queue shutdown failed", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("shutdown queue: %w", err)
		}
	}
	c.metrics.QueriesPending.Set(0)

	c.logger.Info("coordinator finished",
		"batches", sum.Batches, "received", sum.Received, "queries", sum.Queries,
		"rows", sum.Rows, "interrupted", sum.Interrupted)
	return sum, runErr
}

func (c *Coordinator) publishAndDrain(ctx context.Context, queries []domain.ZipQuery, out RecordWriter, sum *Summary) error {
	pending := make(map[string]bool)
	for _, chunk := range domain.Partition(queries, c.batchSize) {
		b := domain.JobBatch{ID: uuid.NewString(), Queries: chunk}
		if err := c.broker.PublishJob(ctx, b); err != nil {
			if ctx.Err() != nil {
				sum.Interrupted = true
				return nil
			}
			return fmt.Errorf("publish job batch %s: %w", b.ID, err)
		}
		pending[b.ID] = true
		sum.Batches++
		c.metrics.JobsPublished.Inc()
	}
	c.metrics.QueriesPending.Set(float64(len(queries)))
	c.logger.Info("published job batches", "batches", sum.Batches)

	return c.drain(ctx, out, sum, pending)
}

// drain polls for results until one record sequence per query has arrived.
// Batches not in pending, either duplicates or left over from another run,
// are dropped.
func (c *Coordinator) drain(ctx context.Context, out RecordWriter, sum *Summary, pending map[string]bool) error {
	for sum.Received < sum.Queries {
		if ctx.Err() != nil {
			c.logger.Warn("drain interrupted", "received", sum.Received, "queries", sum.Queries)
			sum.Interrupted = true
			return nil
		}

		r, ok, err := c.broker.TryResult(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("poll result queue failed", "error", err)
			}
			c.pause(ctx)
			continue
		}
		if !ok {
			c.pause(ctx)
			continue
		}

		if !pending[r.BatchID] {
			c.logger.Warn("unexpected result batch ignored", "batch_id", r.BatchID, "worker_id", r.WorkerID)
			continue
		}
		delete(pending, r.BatchID)

		rows, err := writeBatch(out, r)
		sum.Rows += rows
		c.metrics.RecordsWritten.Add(float64(rows))
		if err != nil {
			return fmt.Errorf("write result batch %s: %w", r.BatchID, err)
		}

		sum.Received += r.Len()
		c.metrics.ResultsReceived.Add(float64(r.Len()))
		c.metrics.QueriesPending.Set(float64(max(sum.Queries-sum.Received, 0)))
		c.logger.Info("result batch received",
			"batch_id", r.BatchID, "worker_id", r.WorkerID,
			"received", sum.Received, "queries", sum.Queries)
	}
	return nil
}

func (c *Coordinator) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-c.clock.After(c.pollInterval):
	}
}

func (c *Coordinator) wait(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.clock.After(d)
}
