package queue

import "errors"

var (
	// ErrQueueClosed is returned when using a queue after Close
	ErrQueueClosed = errors.New("queue is closed")

	// ErrBadQueueName is returned for queue names that are not valid identifiers
	ErrBadQueueName = errors.New("invalid queue name")
)
