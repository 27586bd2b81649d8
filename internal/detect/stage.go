// Package detect implements the ingestion stage: it consumes images published
// on the device topic, runs face detection and routes each image either to
// the recognition work queue or straight to the result queue.
package detect

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"log"

	"github.com/tendant/simple-face-pipeline/internal/metrics"
	"github.com/tendant/simple-face-pipeline/internal/queue"
	"github.com/tendant/simple-face-pipeline/internal/vision"
	"github.com/tendant/simple-face-pipeline/pkg/envelope"
)

// Stage routes inbound images. It holds no state between messages, so
// redelivering a message just repeats the same emission.
type Stage struct {
	detector vision.Detector
	work     queue.Publisher
	results  queue.Publisher
	cropSize int
}

// NewStage creates the ingestion stage. A cropSize of 0 uses
// vision.DefaultCropSize.
func NewStage(detector vision.Detector, work, results queue.Publisher, cropSize int) *Stage {
	if cropSize <= 0 {
		cropSize = vision.DefaultCropSize
	}
	return &Stage{
		detector: detector,
		work:     work,
		results:  results,
		cropSize: cropSize,
	}
}

// Handle processes one delivery from the inbound topic. It never returns an
// error: a message that cannot be processed is logged and dropped without any
// emission, and the subscriber loop keeps running.
func (s *Stage) Handle(topic string, payload []byte) {
	metrics.DetectConsumed.Inc()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic while handling message on %s: %v", topic, r)
			metrics.DetectDropped.WithLabelValues(metrics.ReasonPanic).Inc()
		}
	}()

	msg, err := envelope.DecodeInbound(payload)
	if err != nil {
		log.Printf("Dropping message on %s: %v", topic, err)
		metrics.DetectDropped.WithLabelValues(metrics.ReasonMalformed).Inc()
		return
	}

	log.Printf("[%s] Received %s (%d bytes encoded)", msg.RequestID, msg.Filename, len(msg.Encoded))

	// No cancellation once a message is in flight; in-flight work finishes
	// even during shutdown.
	ctx := context.Background()

	data, err := msg.Payload()
	if err != nil {
		log.Printf("[%s] Dropping message: %v", msg.RequestID, err)
		metrics.DetectDropped.WithLabelValues(metrics.ReasonPayload).Inc()
		return
	}

	img, err := vision.DecodeImage(data)
	if err != nil {
		log.Printf("[%s] Dropping message: %v", msg.RequestID, err)
		metrics.DetectDropped.WithLabelValues(metrics.ReasonPayload).Inc()
		return
	}

	crop, found, err := s.detector.Detect(ctx, img)
	if err != nil {
		log.Printf("[%s] Detection failed, dropping message: %v", msg.RequestID, err)
		metrics.DetectDropped.WithLabelValues(metrics.ReasonDetector).Inc()
		return
	}

	if !found {
		s.emitNoFace(ctx, msg)
		return
	}
	s.emitFace(ctx, msg, crop)
}

// emitNoFace publishes the terminal no-face result.
func (s *Stage) emitNoFace(ctx context.Context, msg *envelope.InboundImage) {
	result := envelope.Result{
		RequestID: msg.RequestID,
		Filename:  msg.Filename,
		Result:    envelope.ResultNoFace,
	}

	body, err := json.Marshal(result)
	if err != nil {
		log.Printf("[%s] Failed to encode result, dropping message: %v", msg.RequestID, err)
		metrics.DetectDropped.WithLabelValues(metrics.ReasonEmit).Inc()
		return
	}
	if err := s.results.Publish(ctx, body); err != nil {
		log.Printf("[%s] Failed to publish result, dropping message: %v", msg.RequestID, err)
		metrics.DetectDropped.WithLabelValues(metrics.ReasonEmit).Inc()
		return
	}

	metrics.DetectNoFace.Inc()
	log.Printf("[%s] No face in %s, result emitted", msg.RequestID, msg.Filename)
}

// emitFace normalizes the crop and enqueues it for recognition.
func (s *Stage) emitFace(ctx context.Context, msg *envelope.InboundImage, crop image.Image) {
	normalized := vision.Normalize(crop, s.cropSize)

	data, err := vision.EncodeJPEG(normalized)
	if err != nil {
		log.Printf("[%s] Failed to encode face crop, dropping message: %v", msg.RequestID, err)
		metrics.DetectDropped.WithLabelValues(metrics.ReasonEmit).Inc()
		return
	}

	face := envelope.FaceMessage{
		RequestID: msg.RequestID,
		Filename:  msg.Filename,
		Face:      base64.StdEncoding.EncodeToString(data),
	}

	body, err := json.Marshal(face)
	if err != nil {
		log.Printf("[%s] Failed to encode work message, dropping message: %v", msg.RequestID, err)
		metrics.DetectDropped.WithLabelValues(metrics.ReasonEmit).Inc()
		return
	}
	if err := s.work.Publish(ctx, body); err != nil {
		log.Printf("[%s] Failed to enqueue face crop, dropping message: %v", msg.RequestID, err)
		metrics.DetectDropped.WithLabelValues(metrics.ReasonEmit).Inc()
		return
	}

	metrics.DetectFaces.Inc()
	log.Printf("[%s] Face crop from %s enqueued for recognition", msg.RequestID, msg.Filename)
}
