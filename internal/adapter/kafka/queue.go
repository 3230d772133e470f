// Package kafka implements the job and result queues as Kafka topics.
// Workers share one consumer group on the job topic so each batch is
// delivered to a single worker.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/hashicorp/go-multierror"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
)

const (
	defaultJobPartitions = 12
	defaultClaimTimeout  = 2 * time.Second
	defaultJoinTimeout   = 15 * time.Second
	headerBatchID        = "batch_id"
	headerKind           = "kind"
)

// Options configures the Kafka transport.
type Options struct {
	Brokers   []string
	Username  string
	Password  string
	Namespace string

	// ClaimTimeout bounds how long a claim or result poll waits for a
	// message before reporting the queue empty.
	ClaimTimeout time.Duration
	// JoinTimeout replaces ClaimTimeout for a client's first claim, which
	// has to wait for the consumer group to assign partitions.
	JoinTimeout time.Duration

	JobPartitions     int
	ReplicationFactor int
}

func (o Options) withDefaults() Options {
	if o.ClaimTimeout <= 0 {
		o.ClaimTimeout = defaultClaimTimeout
	}
	if o.JoinTimeout < o.ClaimTimeout {
		o.JoinTimeout = max(defaultJoinTimeout, o.ClaimTimeout)
	}
	if o.JobPartitions <= 0 {
		o.JobPartitions = defaultJobPartitions
	}
	if o.ReplicationFactor <= 0 {
		o.ReplicationFactor = 1
	}
	return o
}

func (o Options) mechanism() sasl.Mechanism {
	if o.Username == "" {
		return nil
	}
	return plain.Mechanism{Username: o.Username, Password: o.Password}
}

func (o Options) dialer() *kafkago.Dialer {
	return &kafkago.Dialer{
		Timeout:       10 * time.Second,
		SASLMechanism: o.mechanism(),
	}
}

// JobTopic and ResultTopic name the topics used for namespace ns.
func JobTopic(ns string) string    { return ns + "-jobs" }
func ResultTopic(ns string) string { return ns + "-results" }

func newWriter(o Options, topic string) *kafkago.Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(o.Brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	if m := o.mechanism(); m != nil {
		w.Transport = &kafkago.Transport{SASL: m}
	}
	return w
}

func newReader(o Options, topic, group string) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     o.Brokers,
		Topic:       topic,
		GroupID:     group,
		Dialer:      o.dialer(),
		StartOffset: kafkago.FirstOffset,
		MaxWait:     250 * time.Millisecond,
	})
}

// ping dials the first reachable broker.
func ping(ctx context.Context, o Options) error {
	if len(o.Brokers) == 0 {
		return fmt.Errorf("%w: no kafka brokers", domain.ErrQueueUnavailable)
	}
	var result *multierror.Error
	for _, addr := range o.Brokers {
		conn, err := o.dialer().DialContext(ctx, "tcp", addr)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("%w: %w", domain.ErrQueueUnavailable, result.ErrorOrNil())
}

// controller opens a connection to the cluster controller, which handles
// topic administration.
func controller(ctx context.Context, o Options) (*kafkago.Conn, error) {
	conn, err := o.dialer().DialContext(ctx, "tcp", o.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	b, err := conn.Controller()
	if err != nil {
		return nil, fmt.Errorf("find controller: %w", err)
	}
	addr := net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
	cc, err := o.dialer().DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial controller %s: %w", addr, err)
	}
	return cc, nil
}

func encodeMessage(kind, batchID string, value []byte) kafkago.Message {
	return kafkago.Message{
		Key:   []byte(batchID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: headerKind, Value: []byte(kind)},
			{Key: headerBatchID, Value: []byte(batchID)},
		},
	}
}

// fetch reads one message, waiting at most timeout. An elapsed timeout
// means the topic is currently empty.
func fetch(ctx context.Context, r *kafkago.Reader, timeout time.Duration) (kafkago.Message, bool, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := r.FetchMessage(fetchCtx)
	if err != nil {
		if isEmpty(ctx, err) {
			return kafkago.Message{}, false, nil
		}
		return kafkago.Message{}, false, fmt.Errorf("fetch from %s: %w", r.Config().Topic, err)
	}
	return msg, true, nil
}

func isEmpty(parent context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
}

// Broker is the coordinator side of the Kafka transport.
type Broker struct {
	opts    Options
	jobs    *kafkago.Writer
	results *kafkago.Reader
	logger  *slog.Logger
}

// NewBroker verifies a broker is reachable and prepares the job producer
// and result consumer.
func NewBroker(ctx context.Context, opts Options, logger *slog.Logger) (*Broker, error) {
	opts = opts.withDefaults()
	if err := ping(ctx, opts); err != nil {
		return nil, err
	}
	return &Broker{
		opts:    opts,
		jobs:    newWriter(opts, JobTopic(opts.Namespace)),
		results: newReader(opts, ResultTopic(opts.Namespace), opts.Namespace+"-coordinator"),
		logger:  logger,
	}, nil
}

// Start creates both topics. Topics that already exist are reused.
func (b *Broker) Start(ctx context.Context) error {
	cc, err := controller(ctx, b.opts)
	if err != nil {
		return err
	}
	defer cc.Close()

	err = cc.CreateTopics(
		kafkago.TopicConfig{
			Topic:             JobTopic(b.opts.Namespace),
			NumPartitions:     b.opts.JobPartitions,
			ReplicationFactor: b.opts.ReplicationFactor,
		},
		kafkago.TopicConfig{
			Topic:             ResultTopic(b.opts.Namespace),
			NumPartitions:     1,
			ReplicationFactor: b.opts.ReplicationFactor,
		},
	)
	if err != nil && !errors.Is(err, kafkago.TopicAlreadyExists) {
		return fmt.Errorf("create topics: %w", err)
	}
	b.logger.Info("kafka topics ready",
		"jobs", JobTopic(b.opts.Namespace), "results", ResultTopic(b.opts.Namespace))
	return nil
}

func (b *Broker) PublishJob(ctx context.Context, job domain.JobBatch) error {
	data, err := domain.EncodeJobBatch(job)
	if err != nil {
		return err
	}
	if err := b.jobs.WriteMessages(ctx, encodeMessage("job", job.ID, data)); err != nil {
		return fmt.Errorf("write job %s: %w", job.ID, err)
	}
	return nil
}

func (b *Broker) TryResult(ctx context.Context) (domain.ResultBatch, bool, error) {
	msg, ok, err := fetch(ctx, b.results, b.opts.ClaimTimeout)
	if err != nil || !ok {
		return domain.ResultBatch{}, false, err
	}
	if err := b.results.CommitMessages(ctx, msg); err != nil {
		b.logger.Warn("commit result offset failed", "offset", msg.Offset, "error", err)
	}
	r, err := domain.DecodeResultBatch(msg.Value)
	if err != nil {
		return domain.ResultBatch{}, false, err
	}
	return r, true, nil
}

// Shutdown closes the producer and consumer and deletes both topics.
func (b *Broker) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	if err := b.jobs.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close job writer: %w", err))
	}
	if err := b.results.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close result reader: %w", err))
	}

	cc, err := controller(ctx, b.opts)
	if err != nil {
		return multierror.Append(result, err).ErrorOrNil()
	}
	defer cc.Close()
	if err := cc.DeleteTopics(JobTopic(b.opts.Namespace), ResultTopic(b.opts.Namespace)); err != nil {
		result = multierror.Append(result, fmt.Errorf("delete topics: %w", err))
	}
	return result.ErrorOrNil()
}

// CheckReadiness dials a broker.
func (b *Broker) CheckReadiness(ctx context.Context) error {
	return ping(ctx, b.opts)
}

// Client is the worker side of the Kafka transport.
type Client struct {
	opts    Options
	joined  atomic.Bool
	jobs    *kafkago.Reader
	results *kafkago.Writer
	logger  *slog.Logger
}

// NewClient verifies a broker is reachable and joins the worker consumer group.
func NewClient(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	opts = opts.withDefaults()
	if err := ping(ctx, opts); err != nil {
		return nil, err
	}
	return &Client{
		opts:    opts,
		jobs:    newReader(opts, JobTopic(opts.Namespace), opts.Namespace+"-workers"),
		results: newWriter(opts, ResultTopic(opts.Namespace)),
		logger:  logger,
	}, nil
}

// TryClaim fetches one job batch and commits its offset before decoding,
// so neither the batch nor an undecodable message is redelivered.
func (c *Client) TryClaim(ctx context.Context) (domain.JobBatch, bool, error) {
	timeout := c.opts.ClaimTimeout
	if !c.joined.Swap(true) {
		timeout = c.opts.JoinTimeout
	}
	msg, ok, err := fetch(ctx, c.jobs, timeout)
	if err != nil || !ok {
		return domain.JobBatch{}, false, err
	}
	if err := c.jobs.CommitMessages(ctx, msg); err != nil {
		return domain.JobBatch{}, false, fmt.Errorf("commit job offset: %w", err)
	}
	b, err := domain.DecodeJobBatch(msg.Value)
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
	if err := c.results.WriteMessages(ctx, encodeMessage("result", r.BatchID, data)); err != nil {
		return fmt.Errorf("write result %s: %w", r.BatchID, err)
	}
	return nil
}

func (c *Client) Close() error {
	var result *multierror.Error
	if err := c.jobs.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close job reader: %w", err))
	}
	if err := c.results.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close result writer: %w", err))
	}
	return result.ErrorOrNil()
}
