// Package amqp implements the job and result queues on a RabbitMQ broker.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/hashicorp/go-multierror"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

const defaultPort = 5672

// Options configures a connection to the broker.
type Options struct {
	Addr      string
	Username  string
	Password  string
	Namespace string
}

// URL builds the connection URL for opts. An Addr that already carries a
// scheme is used as given, with credentials filled in when it has none.
func (o Options) URL() (string, error) {
	user := o.Username
	if user == "" {
		user = "guest"
	}
	if strings.Contains(o.Addr, "://") {
		uri, err := amqp091.ParseURI(o.Addr)
		if err != nil {
			return "", fmt.Errorf("parse amqp url: %w", err)
		}
		if !strings.Contains(o.Addr, "@") {
			uri.Username, uri.Password = user, o.Password
		}
		return uri.String(), nil
	}

	host, port := o.Addr, defaultPort
	if h, p, err := net.SplitHostPort(o.Addr); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", fmt.Errorf("invalid amqp port %q", p)
		}
		host, port = h, n
	}
	uri := amqp091.URI{
		Scheme:   "amqp",
		Host:     host,
		Port:     port,
		Username: user,
		Password: o.Password,
		Vhost:    "/",
	}
	return uri.String(), nil
}

func jobsQueue(ns string) string    { return ns + ".jobs" }
func resultsQueue(ns string) string { return ns + ".results" }

type conn struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	ch      *amqp091.Channel
	jobs    string
	results string
	logger  *slog.Logger
}

func dial(opts Options, logger *slog.Logger) (*conn, error) {
	url, err := opts.URL()
	if err != nil {
		return nil, err
	}
	c, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial amqp: %w", domain.ErrQueueUnavailable, err)
	}
	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: open channel: %w", domain.ErrQueueUnavailable, err)
	}
	q := &conn{
		conn:    c,
		ch:      ch,
		jobs:    jobsQueue(opts.Namespace),
		results: resultsQueue(opts.Namespace),
		logger:  logger,
	}
	if err := q.declare(); err != nil {
		q.close()
		return nil, err
	}
	return q, nil
}

func (c *conn) declare() error {
	for _, name := range []string{c.jobs, c.results} {
		if _, err := c.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
	}
	return nil
}

func (c *conn) publish(ctx context.Context, queue string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.ch.PublishWithContext(ctx, "", queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

func (c *conn) get(queue string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok, err := c.ch.Get(queue, true)
	if err != nil {
		return nil, false, fmt.Errorf("get from %s: %w", queue, err)
	}
	if !ok {
		return nil, false, nil
	}
	return d.Body, true, nil
}

func (c *conn) close() error {
	var result *multierror.Error
	if err := c.ch.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close channel: %w", err))
	}
	if err := c.conn.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close connection: %w", err))
	}
	return result.ErrorOrNil()
}

// Broker is the coordinator side of the AMQP transport.
type Broker struct {
	*conn
}

// NewBroker connects and declares the job and result queues.
func NewBroker(_ context.Context, opts Options, logger *slog.Logger) (*Broker, error) {
	c, err := dial(opts, logger)
	if err != nil {
		return nil, err
	}
	return &Broker{conn: c}, nil
}

// Start purges both queues so a fresh run never sees stale batches.
func (b *Broker) Start(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, name := range []string{b.jobs, b.results} {
		if _, err := b.ch.QueuePurge(name, false); err != nil {
			return fmt.Errorf("purge queue %s: %w", name, err)
		}
	}
	return nil
}

func (b *Broker) PublishJob(ctx context.Context, job domain.JobBatch) error {
	data, err := domain.EncodeJobBatch(job)
	if err != nil {
		return err
	}
	return b.publish(ctx, b.jobs, data)
}

func (b *Broker) TryResult(_ context.Context) (domain.ResultBatch, bool, error) {
	data, ok, err := b.get(b.results)
	if err != nil || !ok {
		return domain.ResultBatch{}, false, err
	}
	r, err := domain.DecodeResultBatch(data)
	if err != nil {
		return domain.ResultBatch{}, false, err
	}
	return r, true, nil
}

// Shutdown deletes both queues and closes the connection.
func (b *Broker) Shutdown(_ context.Context) error {
	var result *multierror.Error
	b.mu.Lock()
	for _, name := range []string{b.jobs, b.results} {
		if _, err := b.ch.QueueDelete(name, false, false, false); err != nil {
			result = multierror.Append(result, fmt.Errorf("delete queue %s: %w", name, err))
		}
	}
	b.mu.Unlock()
	if err := b.close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// CheckReadiness reports whether the broker connection is open.
func (b *Broker) CheckReadiness(_ context.Context) error {
	if b.conn.conn.IsClosed() {
		return fmt.Errorf("amqp connection closed")
	}
	return nil
}

// Client is the worker side of the AMQP transport.
type Client struct {
	*conn
}

// NewClient connects and declares the job and result queues.
func NewClient(_ context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	c, err := dial(opts, logger)
	if err != nil {
		return nil, err
	}
	return &Client{conn: c}, nil
}

func (c *Client) TryClaim(_ context.Context) (domain.JobBatch, bool, error) {
	data, ok, err := c.get(c.jobs)
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
	return c.publish(ctx, c.results, data)
}

func (c *Client) Close() error {
	return c.close()
}
