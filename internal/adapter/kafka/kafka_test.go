package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/stretchr/testify/assert"
)

func TestEncodeMessage(t *testing.T) {
	msg := encodeMessage("job", "b-1", []byte(`{"id":"b-1"}`))

	assert.Equal(t, []byte("b-1"), msg.Key)
	assert.JSONEq(t, `{"id":"b-1"}`, string(msg.Value))
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, headerKind, msg.Headers[0].Key)
	assert.Equal(t, []byte("job"), msg.Headers[0].Value)
	assert.Equal(t, headerBatchID, msg.Headers[1].Key)
	assert.Equal(t, []byte("b-1"), msg.Headers[1].Value)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "run1-jobs", JobTopic("run1"))
	assert.Equal(t, "run1-results", ResultTopic("run1"))
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, defaultClaimTimeout, o.ClaimTimeout)
	assert.Equal(t, defaultJoinTimeout, o.JoinTimeout)
	assert.Equal(t, defaultJobPartitions, o.JobPartitions)
	assert.Equal(t, 1, o.ReplicationFactor)

	o = Options{ClaimTimeout: time.Minute, JobPartitions: 3, ReplicationFactor: 2}.withDefaults()
	assert.Equal(t, time.Minute, o.ClaimTimeout)
	assert.Equal(t, time.Minute, o.JoinTimeout)
	assert.Equal(t, 3, o.JobPartitions)
	assert.Equal(t, 2, o.ReplicationFactor)
}

func TestMechanism(t *testing.T) {
	assert.Nil(t, Options{}.mechanism())

	m := Options{Username: "svc", Password: "pw"}.mechanism()
	assert.Equal(t, plain.Mechanism{Username: "svc", Password: "pw"}, m)
	assert.NotNil(t, Options{Username: "svc"}.dialer().SASLMechanism)
	assert.Nil(t, newWriter(Options{Brokers: []string{"b:9092"}}, "t").Transport)
	assert.NotNil(t, newWriter(Options{Brokers: []string{"b:9092"}, Username: "svc"}, "t").Transport)
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, isEmpty(context.Background(), context.DeadlineExceeded))
	assert.False(t, isEmpty(context.Background(), errors.New("broker down")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, isEmpty(ctx, context.DeadlineExceeded), "cancelled parent is not an empty queue")
}
