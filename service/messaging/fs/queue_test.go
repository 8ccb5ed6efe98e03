package fs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/approvo/service/messaging"
)

type notice struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`
}

func newQueue(t *testing.T, maxRetries int) (*Queue[notice], afs.Service, Config) {
	fs := afs.New()
	config := Config{BasePath: t.TempDir(), MaxRetries: maxRetries, RetryDelay: 5 * time.Millisecond, PollInterval: 5 * time.Millisecond}
	queue, err := NewQueue[notice](fs, config)
	require.NoError(t, err)
	return queue, fs, config
}

func TestQueue_Order(t *testing.T) {
	queue, fs, _ := newQueue(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, dir := range []string{queue.pendingDir, queue.processingDir, queue.failedDir, queue.dlqDir} {
		exists, err := fs.Exists(ctx, dir)
		require.NoError(t, err)
		assert.True(t, exists, dir)
	}
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, queue.Publish(ctx, &notice{ID: id}))
		time.Sleep(time.Millisecond)
	}
	var ids []string
	for i := 0; i < 3; i++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		ids = append(ids, message.T().ID)
		require.NoError(t, message.Ack())
		assert.True(t, errors.Is(message.Ack(), messaging.ErrAlreadyProcessed))
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	empty, cancelEmpty := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelEmpty()
	_, err := queue.Consume(empty)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestQueue_RetryAndDeadLetter(t *testing.T) {
	queue, _, _ := newQueue(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, queue.Publish(ctx, &notice{ID: "retry", Topic: "instance.terminal"}))
	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, message.Attempt())
	require.NoError(t, message.Nack(errors.New("webhook 500")))

	message, err = queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, message.Attempt())
	assert.Equal(t, "instance.terminal", message.T().Topic)
	require.NoError(t, message.Nack(errors.New("webhook 503")))

	dead, err := queue.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "retry", dead[0].Data.ID)
	assert.Equal(t, "webhook 503", dead[0].Error)
	assert.Equal(t, MessageStateDead, dead[0].State)
}

func TestQueue_RecoversProcessing(t *testing.T) {
	queue, fs, config := newQueue(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, queue.Publish(ctx, &notice{ID: "inflight"}))
	_, err := queue.Consume(ctx)
	require.NoError(t, err)

	restarted, err := NewQueue[notice](fs, config)
	require.NoError(t, err)
	message, err := restarted.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inflight", message.T().ID)
	assert.NoError(t, message.Ack())
}
