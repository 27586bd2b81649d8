package recognize

import (
	"context"
	"log"
	"time"

	"github.com/tendant/simple-face-pipeline/internal/queue"
)

// AckPolicy selects which records of a handled batch are acknowledged.
type AckPolicy string

const (
	// AckAll acknowledges every record regardless of outcome.
	AckAll AckPolicy = "all"

	// AckSucceeded leaves retryable failures on the queue for redelivery.
	// Malformed records are still acknowledged.
	AckSucceeded AckPolicy = "succeeded"
)

// Default consumer settings.
const (
	DefaultBatchSize    = 10
	DefaultPollInterval = time.Second
)

// Consumer drives the recognition stage from the work queue.
type Consumer struct {
	queue     queue.Consumer
	stage     *Stage
	batchSize int
	interval  time.Duration
	policy    AckPolicy
}

// NewConsumer creates a consumer. Zero values fall back to the defaults and
// an empty policy means AckAll.
func NewConsumer(q queue.Consumer, stage *Stage, batchSize int, interval time.Duration, policy AckPolicy) *Consumer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if policy == "" {
		policy = AckAll
	}
	return &Consumer{
		queue:     q,
		stage:     stage,
		batchSize: batchSize,
		interval:  interval,
		policy:    policy,
	}
}

// Run polls the work queue until ctx is canceled. A batch in flight when
// cancellation arrives is finished and acknowledged before Run returns.
func (c *Consumer) Run(ctx context.Context) {
	log.Printf("Recognition consumer started (batch=%d, poll=%s, ack=%s)", c.batchSize, c.interval, c.policy)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Recognition consumer stopped")
			return
		default:
		}

		n, err := c.RunOnce(ctx)
		if err != nil {
			log.Printf("Failed to receive batch: %v", err)
		}
		if n == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.interval):
			}
		}
	}
}

// RunOnce receives and handles at most one batch, returning the number of
// records delivered.
func (c *Consumer) RunOnce(ctx context.Context) (int, error) {
	batch, err := c.queue.Receive(ctx, c.batchSize)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	// Records already in flight are finished even if ctx is canceled
	// mid-batch.
	c.handle(context.Background(), batch)
	return len(batch), nil
}

// handle invokes the stage and applies the ack policy to each record.
func (c *Consumer) handle(ctx context.Context, batch []queue.Message) {
	result := c.stage.HandleBatch(ctx, batch)

	byID := make(map[string]RecordResult, len(result.Records))
	for _, rr := range result.Records {
		byID[rr.MessageID] = rr
	}

	for _, rec := range batch {
		rr := byID[rec.ID]
		if c.policy == AckSucceeded && rr.Err != nil && rr.Retryable {
			log.Printf("[%s] Leaving record %s for redelivery: %v", rr.RequestID, rec.ID, rr.Err)
			continue
		}
		if err := c.queue.Ack(ctx, rec); err != nil {
			log.Printf("Failed to ack record %s: %v", rec.ID, err)
		}
	}
}
