package memory

import (
	"context"
	"testing"

	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()
	require.NoError(t, q.Start(ctx))

	require.NoError(t, q.PublishJob(ctx, domain.JobBatch{ID: "a"}))
	require.NoError(t, q.PublishJob(ctx, domain.JobBatch{ID: "b"}))

	b, ok, err := q.TryClaim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", b.ID)

	b, ok, err = q.TryClaim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", b.ID)

	_, ok, err = q.TryClaim(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueue_Results(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()

	_, ok, err := q.TryResult(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, q.PushResult(ctx, domain.ResultBatch{BatchID: "a"}))
	jobs, results := q.Pending()
	assert.Equal(t, 0, jobs)
	assert.Equal(t, 1, results)

	r, ok, err := q.TryResult(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", r.BatchID)
}

func TestQueue_ShutdownRejects(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()
	require.NoError(t, q.PublishJob(ctx, domain.JobBatch{ID: "a"}))
	require.NoError(t, q.Shutdown(ctx))

	_, _, err := q.TryClaim(ctx)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, q.PushResult(ctx, domain.ResultBatch{}), ErrClosed)

	require.NoError(t, q.Start(ctx))
	_, ok, err := q.TryClaim(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "start discards earlier jobs")
}
