// Package queue carries messages between pipeline stages. Implementations
// deliver every published message at least once: received messages are leased,
// and a message that is not acked before its visibility deadline becomes
// deliverable again.
package queue

import "context"

// Message is one delivered queue record
type Message struct {
	// ID is assigned at publish time and stable across redeliveries
	ID string

	// Body is the message payload
	Body []byte

	// Attempt counts deliveries of this message, starting at 1
	Attempt int
}

// Publisher appends messages to a queue
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// Consumer receives and acknowledges messages
type Consumer interface {
	// Receive claims up to max messages, returning an empty slice when
	// nothing is ready
	Receive(ctx context.Context, max int) ([]Message, error)

	// Ack removes a message so it is never delivered again. Acking a
	// message that is already gone is a no-op.
	Ack(ctx context.Context, msg Message) error
}
