package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultVisibility is how long a received message stays leased before it is
// redelivered.
const DefaultVisibility = 30 * time.Second

// Memory is an in-process queue used by standalone mode and tests. It keeps
// the same lease semantics as the durable implementation so at-least-once
// behavior can be exercised without a database.
type Memory struct {
	visibility time.Duration

	mu     sync.Mutex
	ready  []Message
	leased map[string]lease
	closed bool
}

type lease struct {
	msg      Message
	deadline time.Time
}

// NewMemory creates an in-process queue. A visibility of 0 uses
// DefaultVisibility.
func NewMemory(visibility time.Duration) *Memory {
	if visibility <= 0 {
		visibility = DefaultVisibility
	}
	return &Memory{
		visibility: visibility,
		leased:     make(map[string]lease),
	}
}

// Publish appends a message to the queue.
func (q *Memory) Publish(ctx context.Context, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	buf := make([]byte, len(body))
	copy(buf, body)
	q.ready = append(q.ready, Message{ID: uuid.NewString(), Body: buf})
	return nil
}

// Receive claims up to max messages and leases them until the visibility
// deadline.
func (q *Memory) Receive(ctx context.Context, max int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	q.reclaimExpired()

	n := max
	if n > len(q.ready) {
		n = len(q.ready)
	}
	if n <= 0 {
		return nil, nil
	}

	batch := make([]Message, n)
	copy(batch, q.ready[:n])
	q.ready = q.ready[n:]

	deadline := time.Now().Add(q.visibility)
	for i := range batch {
		batch[i].Attempt++
		q.leased[batch[i].ID] = lease{msg: batch[i], deadline: deadline}
	}
	return batch, nil
}

// Ack removes a message whether it is currently leased or already back in the
// ready pool.
func (q *Memory) Ack(ctx context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if _, ok := q.leased[msg.ID]; ok {
		delete(q.leased, msg.ID)
		return nil
	}
	for i := range q.ready {
		if q.ready[i].ID == msg.ID {
			q.ready = append(q.ready[:i], q.ready[i+1:]...)
			return nil
		}
	}
	return nil
}

// Depth reports how many messages are held, leased ones included.
func (q *Memory) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready) + len(q.leased)
}

// Close rejects all further operations.
func (q *Memory) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// reclaimExpired moves timed-out leases back to the ready pool.
// Caller holds the lock.
func (q *Memory) reclaimExpired() {
	now := time.Now()
	for id, l := range q.leased {
		if now.After(l.deadline) {
			q.ready = append(q.ready, l.msg)
			delete(q.leased, id)
		}
	}
}
