package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/poiesic/ronbun/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_DeliversMessage(t *testing.T) {
	var got atomic.Value
	q, err := New(func(ctx context.Context, msg Message) error {
		got.Store(msg)
		return nil
	}, WithWorkers(1))
	require.NoError(t, err)
	defer q.Close()

	err = q.Publish(context.Background(), Message{PaperID: "p1", Stage: core.StageMetadata})
	require.NoError(t, err)
	q.Drain()

	msg, ok := got.Load().(Message)
	require.True(t, ok)
	assert.Equal(t, "p1", msg.PaperID)
	assert.Equal(t, core.StageMetadata, msg.Stage)
	assert.Equal(t, 1, msg.Attempt)
}

func TestQueue_RedeliversUntilCap(t *testing.T) {
	var attempts atomic.Int32
	q, err := New(func(ctx context.Context, msg Message) error {
		attempts.Add(1)
		return errors.New("stage failed")
	}, WithWorkers(1), WithMaxAttempts(3))
	require.NoError(t, err)
	defer q.Close()

	err = q.Publish(context.Background(), Message{PaperID: "p1", Stage: core.StageContent})
	require.NoError(t, err)
	q.Drain()

	assert.Equal(t, int32(3), attempts.Load())
}

func TestQueue_SucceedsOnRetry(t *testing.T) {
	var attempts atomic.Int32
	q, err := New(func(ctx context.Context, msg Message) error {
		if attempts.Add(1) < 2 {
			return errors.New("transient")
		}
		return nil
	}, WithWorkers(1))
	require.NoError(t, err)
	defer q.Close()

	err = q.Publish(context.Background(), Message{PaperID: "p1", Stage: core.StageExtraction})
	require.NoError(t, err)
	q.Drain()

	assert.Equal(t, int32(2), attempts.Load())
}

func TestQueue_HandlerPublishesNextStageWithSingleWorker(t *testing.T) {
	// The handler publishes the next stage from inside the only pool
	// worker. Publish must not wait for a free worker slot, or the chain
	// deadlocks here.
	var (
		q      *Queue
		mu     sync.Mutex
		stages []core.Stage
	)
	handler := func(ctx context.Context, msg Message) error {
		mu.Lock()
		stages = append(stages, msg.Stage)
		mu.Unlock()
		if next, ok := msg.Stage.Next(); ok {
			return q.Publish(ctx, Message{PaperID: msg.PaperID, Stage: next})
		}
		return nil
	}

	q, err := New(handler, WithWorkers(1))
	require.NoError(t, err)
	defer q.Close()

	err = q.Publish(context.Background(), Message{PaperID: "p1", Stage: core.StageMetadata})
	require.NoError(t, err)
	q.Drain()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []core.Stage{
		core.StageMetadata,
		core.StageContent,
		core.StageExtraction,
		core.StageEmbedding,
	}, stages)
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q, err := New(func(ctx context.Context, msg Message) error { return nil })
	require.NoError(t, err)
	q.Close()

	err = q.Publish(context.Background(), Message{PaperID: "p1"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestNew_RequiresHandler(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrHandlerRequired)
}
