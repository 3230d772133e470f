// Package redis implements the job and result queues as Redis lists.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
)

// Options configures a connection to the Redis deployment.
type Options struct {
	Addrs     []string
	Username  string
	Password  string
	Namespace string
}

// Keys share a hash tag so a cluster keeps both lists in one slot.
func jobsKey(ns string) string    { return "{" + ns + "}:jobs" }
func resultsKey(ns string) string { return "{" + ns + "}:results" }

type conn struct {
	rc      redis.UniversalClient
	jobs    string
	results string
	logger  *slog.Logger
}

func dial(ctx context.Context, opts Options, logger *slog.Logger) (*conn, error) {
	if len(opts.Addrs) == 0 {
		return nil, fmt.Errorf("%w: no redis address", domain.ErrQueueUnavailable)
	}
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    opts.Addrs,
		Username: opts.Username,
		Password: opts.Password,
	})
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("%w: ping redis: %w", domain.ErrQueueUnavailable, err)
	}
	return &conn{
		rc:      rc,
		jobs:    jobsKey(opts.Namespace),
		results: resultsKey(opts.Namespace),
		logger:  logger,
	}, nil
}

// Broker is the coordinator side of the Redis transport.
type Broker struct {
	*conn
}

// NewBroker connects to Redis and verifies the connection.
func NewBroker(ctx context.Context, opts Options, logger *slog.Logger) (*Broker, error) {
	c, err := dial(ctx, opts, logger)
	if err != nil {
		return nil, err
	}
	return &Broker{conn: c}, nil
}

// Start clears both lists so a fresh run never sees stale batches.
func (b *Broker) Start(ctx context.Context) error {
	if err := b.rc.Del(ctx, b.jobs, b.results).Err(); err != nil {
		return fmt.Errorf("reset queues: %w", err)
	}
	return nil
}

func (b *Broker) PublishJob(ctx context.Context, job domain.JobBatch) error {
	data, err := domain.EncodeJobBatch(job)
	if err != nil {
		return err
	}
	if err := b.rc.RPush(ctx, b.jobs, data).Err(); err != nil {
		return fmt.Errorf("push job %s: %w", job.ID, err)
	}
	return nil
}

func (b *Broker) TryResult(ctx context.Context) (domain.ResultBatch, bool, error) {
	data, ok, err := b.pop(ctx, b.results)
	if err != nil || !ok {
		return domain.ResultBatch{}, false, err
	}
	r, err := domain.DecodeResultBatch(data)
	if err != nil {
		return domain.ResultBatch{}, false, err
	}
	return r, true, nil
}

// Shutdown deletes both lists and closes the connection.
func (b *Broker) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	if err := b.rc.Del(ctx, b.jobs, b.results).Err(); err != nil {
		result = multierror.Append(result, fmt.Errorf("delete queues: %w", err))
	}
	if err := b.rc.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close redis: %w", err))
	}
	return result.ErrorOrNil()
}

// CheckReadiness pings Redis.
func (b *Broker) CheckReadiness(ctx context.Context) error {
	return b.rc.Ping(ctx).Err()
}

// Client is the worker side of the Redis transport.
type Client struct {
	*conn
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	c, err := dial(ctx, opts, logger)
	if err != nil {
		return nil, err
	}
	return &Client{conn: c}, nil
}

func (c *Client) TryClaim(ctx context.Context) (domain.JobBatch, bool, error) {
	data, ok, err := c.pop(ctx, c.jobs)
	if err != nil || !ok {
		return domain.JobBatch{}, false, err
	}
	b, err := domain.DecodeJobBatch(data)
	if err != nil {
		return domain.JobBatch{}, false, err
	}
	return b, true, nil
}

func (c *Client) PushResult(ctx context.Context, r domain.ResultBatch) error {
	data, err := domain.EncodeResultBatch(r)
	if err != nil {
		return err
	}
	if err := c.rc.RPush(ctx, c.results, data).Err(); err != nil {
		return fmt.Errorf("push result %s: %w", r.BatchID, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rc.Close()
}

func (c *conn) pop(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rc.LPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pop %s: %w", key, err)
	}
	return data, true, nil
}
