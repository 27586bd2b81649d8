// Package recognize implements the recognition stage: it embeds face crops
// delivered from the work queue, matches them against the reference gallery
// and emits terminal results.
package recognize

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/tendant/simple-face-pipeline/internal/gallery"
	"github.com/tendant/simple-face-pipeline/internal/metrics"
	"github.com/tendant/simple-face-pipeline/internal/queue"
	"github.com/tendant/simple-face-pipeline/internal/vision"
	"github.com/tendant/simple-face-pipeline/pkg/envelope"
)

// GallerySource provides the reference gallery, loading it on first use.
// gallery.Lazy is the production implementation; an already loaded
// gallery.Gallery satisfies it directly.
type GallerySource interface {
	Get() (*gallery.Gallery, error)
}

// Stage matches face crops against the gallery. Records fail independently:
// a bad record is reported in the batch result and never affects siblings.
type Stage struct {
	embedder   vision.Embedder
	gallery    GallerySource
	results    queue.Publisher
	scratchDir string
}

// NewStage creates the recognition stage. The scratch directory is created if
// missing; an empty scratchDir uses the system temp directory.
func NewStage(embedder vision.Embedder, source GallerySource, results queue.Publisher, scratchDir string) (*Stage, error) {
	if scratchDir == "" {
		scratchDir = filepath.Join(os.TempDir(), "faces")
	}
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	return &Stage{
		embedder:   embedder,
		gallery:    source,
		results:    results,
		scratchDir: scratchDir,
	}, nil
}

// HandleBatch processes one delivery of work queue records. The returned
// batch result always carries the success envelope; individual failures are
// logged and surfaced per record.
func (s *Stage) HandleBatch(ctx context.Context, records []queue.Message) *BatchResult {
	metrics.RecognizeBatches.Inc()

	result := newBatchResult(len(records))
	for _, rec := range records {
		result.Records = append(result.Records, s.handleRecord(ctx, rec))
	}

	log.Printf("Batch of %d records completed (%d succeeded)", len(records), countSucceeded(result.Records))
	return result
}

func countSucceeded(records []RecordResult) int {
	n := 0
	for _, r := range records {
		if r.Succeeded() {
			n++
		}
	}
	return n
}

// handleRecord runs one record through embed and match. The crop is
// materialized as a uniquely named scratch file that is removed on every exit
// path, panics included.
func (s *Stage) handleRecord(ctx context.Context, rec queue.Message) (out RecordResult) {
	out = RecordResult{MessageID: rec.ID, Status: envelope.StatusFailed}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in record %s: %v", rec.ID, r)
			metrics.RecognizeFailures.WithLabelValues(metrics.ReasonPanic).Inc()
			out.Status = envelope.StatusFailed
			out.Err = fmt.Errorf("record panicked: %v", r)
			out.Retryable = true
		}
	}()

	face, err := envelope.DecodeFace(rec.Body)
	if err != nil {
		log.Printf("Skipping record %s: %v", rec.ID, err)
		metrics.RecognizeFailures.WithLabelValues(metrics.ReasonMalformed).Inc()
		out.Err = err
		return out
	}
	out.RequestID = face.RequestID

	if rec.Attempt > 1 {
		log.Printf("[%s] Processing face record (attempt %d)", face.RequestID, rec.Attempt)
	}

	data, err := face.FaceBytes()
	if err != nil {
		log.Printf("[%s] Skipping record: %v", face.RequestID, err)
		metrics.RecognizeFailures.WithLabelValues(metrics.ReasonMalformed).Inc()
		out.Err = err
		return out
	}

	path, err := s.writeScratch(data)
	if err != nil {
		log.Printf("[%s] Record failed: %v", face.RequestID, err)
		metrics.RecognizeFailures.WithLabelValues(metrics.ReasonScratch).Inc()
		out.Err = err
		out.Retryable = true
		return out
	}
	defer os.Remove(path)

	crop, err := imaging.Open(path)
	if err != nil {
		log.Printf("[%s] Skipping record, crop does not decode: %v", face.RequestID, err)
		metrics.RecognizeFailures.WithLabelValues(metrics.ReasonMalformed).Inc()
		out.Err = fmt.Errorf("crop decode failed: %w", err)
		return out
	}

	vec, err := s.embedder.Embed(ctx, crop)
	if err != nil {
		log.Printf("[%s] Record failed, embedding error: %v", face.RequestID, err)
		metrics.RecognizeFailures.WithLabelValues(metrics.ReasonEmbedder).Inc()
		out.Err = fmt.Errorf("embedding failed: %w", err)
		out.Retryable = true
		return out
	}

	g, err := s.gallery.Get()
	if err != nil {
		log.Printf("[%s] Record failed, gallery unavailable: %v", face.RequestID, err)
		metrics.RecognizeFailures.WithLabelValues(metrics.ReasonGallery).Inc()
		out.Err = err
		out.Retryable = true
		return out
	}

	label, dist, err := g.Match(vec)
	if err != nil {
		log.Printf("[%s] Record failed, match error: %v", face.RequestID, err)
		metrics.RecognizeFailures.WithLabelValues(metrics.ReasonGallery).Inc()
		out.Err = fmt.Errorf("gallery match failed: %w", err)
		out.Retryable = true
		return out
	}

	if err := s.emitResult(ctx, face.RequestID, label); err != nil {
		log.Printf("[%s] Record failed, result not published: %v", face.RequestID, err)
		metrics.RecognizeFailures.WithLabelValues(metrics.ReasonEmit).Inc()
		out.Err = err
		out.Retryable = true
		return out
	}

	metrics.RecognizeMatched.Inc()
	log.Printf("[%s] Recognized as %s (distance %.4f)", face.RequestID, label, dist)

	out.Status = envelope.StatusRecognized
	out.Label = label
	out.Err = nil
	return out
}

// writeScratch stores crop bytes as a uniquely named file in the scratch
// directory.
func (s *Stage) writeScratch(data []byte) (string, error) {
	f, err := os.CreateTemp(s.scratchDir, "face-*.jpg")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	path := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close scratch file: %w", err)
	}
	return path, nil
}

// emitResult publishes the terminal recognition result. Filename is not
// carried on this path; downstream consumers key on request_id.
func (s *Stage) emitResult(ctx context.Context, requestID, label string) error {
	result := envelope.Result{
		RequestID: requestID,
		Result:    label,
	}

	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := s.results.Publish(ctx, body); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}
	return nil
}
