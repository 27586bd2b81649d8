package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPublishReceiveAck(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(time.Minute)

	require.NoError(t, q.Publish(ctx, []byte("one")))
	require.NoError(t, q.Publish(ctx, []byte("two")))
	require.NoError(t, q.Publish(ctx, []byte("three")))
	assert.Equal(t, 3, q.Depth())

	batch, err := q.Receive(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, []byte("one"), batch[0].Body)
	assert.Equal(t, []byte("two"), batch[1].Body)
	assert.Equal(t, 1, batch[0].Attempt)

	// Leased messages are not redelivered inside the visibility window.
	rest, err := q.Receive(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, []byte("three"), rest[0].Body)

	for _, msg := range append(batch, rest...) {
		require.NoError(t, q.Ack(ctx, msg))
	}
	assert.Equal(t, 0, q.Depth())

	empty, err := q.Receive(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryRedeliveryAfterVisibilityTimeout(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(10 * time.Millisecond)

	require.NoError(t, q.Publish(ctx, []byte("retry-me")))

	first, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Not acked; must come back once the lease expires.
	time.Sleep(20 * time.Millisecond)

	second, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 2, second[0].Attempt)

	require.NoError(t, q.Ack(ctx, second[0]))
	time.Sleep(20 * time.Millisecond)

	gone, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, gone, "acked message must never be delivered again")
}

func TestMemoryAckAfterLeaseExpiry(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(5 * time.Millisecond)

	require.NoError(t, q.Publish(ctx, []byte("slow")))
	batch, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	// Lease expires and the message moves back to ready before the ack lands.
	time.Sleep(15 * time.Millisecond)
	q.mu.Lock()
	q.reclaimExpired()
	q.mu.Unlock()

	require.NoError(t, q.Ack(ctx, batch[0]))
	assert.Equal(t, 0, q.Depth())
}

func TestMemoryClosed(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(0)
	q.Close()

	assert.ErrorIs(t, q.Publish(ctx, []byte("x")), ErrQueueClosed)
	_, err := q.Receive(ctx, 1)
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Ack(ctx, Message{ID: "x"}), ErrQueueClosed)
}

func TestMemoryPublishCopiesBody(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(time.Minute)

	body := []byte("original")
	require.NoError(t, q.Publish(ctx, body))
	body[0] = 'X'

	batch, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, []byte("original"), batch[0].Body)
}

func TestPostgresQueueNameValidation(t *testing.T) {
	for _, name := range []string{"face_work", "face_results", "q1"} {
		assert.True(t, tableNamePattern.MatchString(name), name)
	}
	for _, name := range []string{"", "Face-Work", "drop table; --", "1abc", "a b"} {
		assert.False(t, tableNamePattern.MatchString(name), name)
	}
}
