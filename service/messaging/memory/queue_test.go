package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testPayload struct {
	TaskID string
	Step   string
}

func TestQueue(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx := context.Background()
	payload := testPayload{TaskID: "t1", Step: "translate"}

	err := queue.Publish(ctx, &payload)
	assert.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, payload, *message.T())

	assert.NoError(t, message.Ack())
	assert.Error(t, message.Ack())
}

func TestQueue_NackWithoutRetriesDeadLetters(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx := context.Background()
	_ = queue.Publish(ctx, &testPayload{TaskID: "t1", Step: "translate"})

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NoError(t, message.Nack(fmt.Errorf("boom")))

	// MaxRetries 0: the message is parked, never redelivered
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 1, queue.DLQSize())
}

func TestQueue_NackRequeuesUnderRetryLimit(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 1
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testPayload](config)
	ctx := context.Background()
	_ = queue.Publish(ctx, &testPayload{TaskID: "t1", Step: "translate"})

	message, _ := queue.Consume(ctx)
	assert.NoError(t, message.Nack(fmt.Errorf("boom")))

	redelivered, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "t1", redelivered.T().TaskID)

	assert.NoError(t, redelivered.Nack(fmt.Errorf("boom again")))
	assert.Eventually(t, func() bool { return queue.DLQSize() == 1 }, time.Second, 10*time.Millisecond)
}

func TestQueue_ConsumeHonoursContext(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := queue.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
