// Package transport selects the queue backend named by the configuration.
package transport

import (
	"context"
	"fmt"
	"log/slog"

	amqpadapter "github.com/gojiplus/get-weather-data/internal/adapter/amqp"
	httpadapter "github.com/gojiplus/get-weather-data/internal/adapter/http"
	kafkaadapter "github.com/gojiplus/get-weather-data/internal/adapter/kafka"
	redisadapter "github.com/gojiplus/get-weather-data/internal/adapter/redis"
	"github.com/gojiplus/get-weather-data/internal/config"
	"github.com/gojiplus/get-weather-data/internal/coordinator"
	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/gojiplus/get-weather-data/internal/worker"
)

// ErrQueueUnavailable is returned when the queue cannot be reached.
var ErrQueueUnavailable = domain.ErrQueueUnavailable

// Broker is a coordinator-side queue that can also report readiness.
type Broker interface {
	coordinator.Broker
	CheckReadiness(ctx context.Context) error
}

// NewBroker returns the coordinator side of the configured backend.
func NewBroker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Broker, error) {
	logger = logger.With("backend", cfg.QueueBackend)
	var (
		b   Broker
		err error
	)
	switch cfg.QueueBackend {
	case config.BackendHTTP:
		b = httpadapter.NewQueueServer(cfg.QueueAddrs[0], cfg.QueueSecret, logger)
	case config.BackendRedis:
		b, err = redisadapter.NewBroker(ctx, redisOptions(cfg), logger)
	case config.BackendAMQP:
		b, err = amqpadapter.NewBroker(ctx, amqpOptions(cfg), logger)
	case config.BackendKafka:
		b, err = kafkaadapter.NewBroker(ctx, kafkaOptions(cfg), logger)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// NewClient returns one worker-side connection to the configured backend.
func NewClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (worker.JobSource, error) {
	logger = logger.With("backend", cfg.QueueBackend)
	var (
		src worker.JobSource
		err error
	)
	switch cfg.QueueBackend {
	case config.BackendHTTP:
		src, err = httpadapter.NewClient(ctx, cfg.QueueAddrs[0], cfg.QueueSecret, httpadapter.DefaultClientTimeout, logger)
	case config.BackendRedis:
		src, err = redisadapter.NewClient(ctx, redisOptions(cfg), logger)
	case config.BackendAMQP:
		src, err = amqpadapter.NewClient(ctx, amqpOptions(cfg), logger)
	case config.BackendKafka:
		src, err = kafkaadapter.NewClient(ctx, kafkaOptions(cfg), logger)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

func redisOptions(cfg *config.Config) redisadapter.Options {
	return redisadapter.Options{
		Addrs:     cfg.QueueAddrs,
		Username:  cfg.QueueUser,
		Password:  cfg.QueueSecret,
		Namespace: cfg.QueueNamespace,
	}
}

func amqpOptions(cfg *config.Config) amqpadapter.Options {
	return amqpadapter.Options{
		Addr:      cfg.QueueAddrs[0],
		Username:  cfg.QueueUser,
		Password:  cfg.QueueSecret,
		Namespace: cfg.QueueNamespace,
	}
}

func kafkaOptions(cfg *config.Config) kafkaadapter.Options {
	return kafkaadapter.Options{
		Brokers:      cfg.QueueAddrs,
		Username:     cfg.QueueUser,
		Password:     cfg.QueueSecret,
		Namespace:    cfg.QueueNamespace,
		ClaimTimeout: cfg.QueueClaimTimeout,
	}
}
