package transport_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gojiplus/get-weather-data/internal/config"
	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/gojiplus/get-weather-data/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		QueueBackend:   config.BackendRedis,
		QueueAddrs:     []string{mr.Addr()},
		QueueNamespace: "t",
	}

	broker, err := transport.NewBroker(ctx, cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, broker.Start(ctx))
	require.NoError(t, broker.CheckReadiness(ctx))

	src, err := transport.NewClient(ctx, cfg, testLogger())
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, broker.PublishJob(ctx, domain.JobBatch{ID: "b1"}))
	b, ok, err := src.TryClaim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b1", b.ID)

	require.NoError(t, broker.Shutdown(ctx))
}

func TestHTTPBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		QueueBackend: config.BackendHTTP,
		QueueAddrs:   []string{"127.0.0.1:0"},
		QueueSecret:  "s3cret",
	}

	broker, err := transport.NewBroker(ctx, cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, broker.Start(ctx))
	defer broker.Shutdown(ctx)

	type addresser interface{ Addr() string }
	cfg.QueueAddrs = []string{broker.(addresser).Addr()}

	src, err := transport.NewClient(ctx, cfg, testLogger())
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, broker.PublishJob(ctx, domain.JobBatch{ID: "b1"}))
	b, ok, err := src.TryClaim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b1", b.ID)
}

func TestUnreachableQueue(t *testing.T) {
	cfg := &config.Config{
		QueueBackend:   config.BackendRedis,
		QueueAddrs:     []string{"127.0.0.1:1"},
		QueueNamespace: "t",
	}
	_, err := transport.NewClient(context.Background(), cfg, testLogger())
	require.ErrorIs(t, err, transport.ErrQueueUnavailable)
}

func TestUnknownBackend(t *testing.T) {
	cfg := &config.Config{QueueBackend: "nats", QueueAddrs: []string{"x"}}
	_, err := transport.NewBroker(context.Background(), cfg, testLogger())
	require.Error(t, err)
	_, err = transport.NewClient(context.Background(), cfg, testLogger())
	require.Error(t, err)
}
