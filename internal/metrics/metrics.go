// Package metrics exposes the pipeline's Prometheus counters and the worker
// monitoring endpoints.
package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DetectConsumed counts inbound topic messages seen by the detection stage
	DetectConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facepipeline_detect_consumed_total",
		Help: "Inbound messages handled by the detection stage.",
	})

	// DetectDropped counts inbound messages dropped without an emission
	DetectDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facepipeline_detect_dropped_total",
		Help: "Inbound messages dropped by the detection stage, by reason.",
	}, []string{"reason"})

	// DetectFaces counts crops forwarded to the work queue
	DetectFaces = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facepipeline_detect_faces_total",
		Help: "Face crops forwarded to the work queue.",
	})

	// DetectNoFace counts no-face results emitted by the detection stage
	DetectNoFace = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facepipeline_detect_no_face_total",
		Help: "No-face results emitted by the detection stage.",
	})

	// RecognizeBatches counts batches handled by the recognition stage
	RecognizeBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facepipeline_recognize_batches_total",
		Help: "Batches handled by the recognition stage.",
	})

	// RecognizeMatched counts records that produced a recognition result
	RecognizeMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facepipeline_recognize_matched_total",
		Help: "Records matched against the gallery.",
	})

	// RecognizeFailures counts records that failed inside a batch
	RecognizeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facepipeline_recognize_failures_total",
		Help: "Records that failed recognition, by reason.",
	}, []string{"reason"})
)

// Drop reasons used with DetectDropped and RecognizeFailures.
const (
	ReasonMalformed = "malformed"
	ReasonPayload   = "payload"
	ReasonDetector  = "detector"
	ReasonEmbedder  = "embedder"
	ReasonGallery   = "gallery"
	ReasonScratch   = "scratch"
	ReasonEmit      = "emit"
	ReasonPanic     = "panic"
)

// NewMux returns the monitoring mux with /health and /metrics.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// handleHealth returns health status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}
