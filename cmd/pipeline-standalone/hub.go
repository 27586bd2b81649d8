package main

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tendant/simple-face-pipeline/internal/queue"
	"github.com/tendant/simple-face-pipeline/pkg/envelope"
)

// resultHub drains the result queue and hands terminal results to waiting
// submitters.
type resultHub struct {
	mu      sync.Mutex
	results map[string]*envelope.Result
}

func newResultHub() *resultHub {
	return &resultHub{results: make(map[string]*envelope.Result)}
}

// run consumes the result queue until ctx is canceled.
func (h *resultHub) run(ctx context.Context, results *queue.Memory) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := results.Receive(ctx, 10)
		if err != nil || len(batch) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(25 * time.Millisecond):
			}
			continue
		}

		for _, msg := range batch {
			r, err := envelope.DecodeResult(msg.Body)
			if err != nil {
				log.Printf("Skipping undecodable result: %v", err)
			} else {
				h.mu.Lock()
				h.results[r.RequestID] = r
				h.mu.Unlock()
			}
			if err := results.Ack(ctx, msg); err != nil {
				log.Printf("Failed to ack result %s: %v", msg.ID, err)
			}
		}
	}
}

// wait polls for the result of requestID until the timeout passes.
func (h *resultHub) wait(requestID string, timeout time.Duration) (*envelope.Result, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		r, ok := h.results[requestID]
		if ok {
			delete(h.results, requestID)
		}
		h.mu.Unlock()

		if ok {
			return r, true
		}
		time.Sleep(25 * time.Millisecond)
	}
	return nil, false
}
