package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/tendant/simple-face-pipeline/internal/detect"
	"github.com/tendant/simple-face-pipeline/internal/gallery"
	"github.com/tendant/simple-face-pipeline/internal/queue"
	"github.com/tendant/simple-face-pipeline/internal/recognize"
	"github.com/tendant/simple-face-pipeline/internal/vision"
	"github.com/tendant/simple-face-pipeline/pkg/envelope"
)

// Standalone pipeline for quick testing: both stages in one process wired
// through in-memory queues, mock model adapters and a built-in demo gallery.
// No broker, database or model service needed.
func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	httpAddr := os.Getenv("PIPELINE_HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	cropSize := vision.DefaultCropSize

	log.Printf("Face Pipeline Standalone")
	log.Printf("  Mode: Embedded (in-memory queues + mock adapters)")
	log.Printf("  HTTP address: %s", httpAddr)

	// In-memory queues stand in for the durable broker
	work := queue.NewMemory(30 * time.Second)
	results := queue.NewMemory(30 * time.Second)

	detector, embedder := pickAdapters()

	// Gallery: artifact if configured and readable, demo gallery otherwise
	source, err := pickGallery(cropSize)
	if err != nil {
		log.Fatalf("Failed to initialize gallery: %v", err)
	}

	detectStage := detect.NewStage(detector, work, results, cropSize)
	log.Printf("✓ Detection stage ready")

	recognizeStage, err := recognize.NewStage(embedder, source, results, "")
	if err != nil {
		log.Fatalf("Failed to initialize recognition stage: %v", err)
	}
	log.Printf("✓ Recognition stage ready")

	// Drive recognition from the in-memory work queue
	runCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	consumer := recognize.NewConsumer(work, recognizeStage, 10, 50*time.Millisecond, recognize.AckAll)
	go consumer.Run(runCtx)

	// Collect terminal results so submitters can wait for theirs
	hub := newResultHub()
	go hub.run(runCtx, results)

	handler := &Handler{
		stage:    detectStage,
		hub:      hub,
		cropSize: cropSize,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/v1/submit", handler.handleSubmit)
	mux.HandleFunc("/v1/test", handler.handleTest)

	server := &http.Server{
		Addr:    httpAddr,
		Handler: mux,
	}

	// Start server in goroutine
	go func() {
		log.Printf("✓ Pipeline ready on %s", httpAddr)
		log.Printf("")
		log.Printf("Quick test:")
		log.Printf("  curl http://localhost%s/v1/test", httpAddr)
		log.Printf("")
		log.Printf("Available endpoints:")
		log.Printf("  GET  /health     - Health check")
		log.Printf("  POST /v1/submit  - Submit an image body, wait for its result")
		log.Printf("  GET  /v1/test    - Run end-to-end test (face + no-face)")
		log.Printf("")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopConsumer()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// pickAdapters selects HTTP model adapters when their URLs are configured,
// mocks otherwise.
func pickAdapters() (vision.Detector, vision.Embedder) {
	var detector vision.Detector
	if url := os.Getenv("DETECTOR_URL"); url != "" {
		log.Printf("Using detection service at: %s", url)
		detector = vision.NewHTTPDetector(url)
	} else {
		log.Printf("Using mock detector")
		detector = vision.NewMockDetector()
	}

	var embedder vision.Embedder
	if url := os.Getenv("EMBEDDER_URL"); url != "" {
		log.Printf("Using embedding service at: %s", url)
		embedder = vision.NewHTTPEmbedder(url)
	} else {
		log.Printf("Using mock embedder")
		embedder = vision.NewMockEmbedder()
	}
	return detector, embedder
}

// pickGallery loads the configured artifact or builds the demo gallery.
func pickGallery(cropSize int) (recognize.GallerySource, error) {
	if path := os.Getenv("GALLERY_PATH"); path != "" {
		log.Printf("Using gallery artifact: %s", path)
		return gallery.NewLazy(path), nil
	}

	g, err := demoGallery(cropSize)
	if err != nil {
		return nil, err
	}
	log.Printf("Using built-in demo gallery (%d references: %v)", g.Len(), g.Labels())
	return g, nil
}

// demoGallery builds references for the built-in demo identities. Reference
// crops run through the same normalize and encode path the detection stage
// applies, keeping each demo image decisively nearest its own reference.
func demoGallery(cropSize int) (*gallery.Gallery, error) {
	ctx := context.Background()
	detector := vision.NewMockDetector()
	embedder := vision.NewMockEmbedder()

	identities := []struct {
		label string
		img   image.Image
	}{
		{"demo-a", demoImageA()},
		{"demo-b", demoImageB()},
	}

	var entries []gallery.Entry
	for _, id := range identities {
		crop, found, err := detector.Detect(ctx, id.img)
		if err != nil || !found {
			return nil, fmt.Errorf("demo image %s yielded no crop: %v", id.label, err)
		}

		data, err := vision.EncodeJPEG(vision.Normalize(crop, cropSize))
		if err != nil {
			return nil, err
		}
		decoded, err := vision.DecodeImage(data)
		if err != nil {
			return nil, err
		}
		vec, err := embedder.Embed(ctx, decoded)
		if err != nil {
			return nil, err
		}
		entries = append(entries, gallery.Entry{Label: id.label, Embedding: vec})
	}
	return gallery.New(entries)
}

// demoImageA is a horizontal gradient with a bright center patch.
func demoImageA() image.Image {
	img := imaging.New(160, 160, color.NRGBA{A: 255})
	for y := 0; y < 160; y++ {
		for x := 0; x < 160; x++ {
			v := uint8(x + 40)
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	for y := 60; y < 100; y++ {
		for x := 60; x < 100; x++ {
			img.Set(x, y, color.NRGBA{R: 250, G: 240, B: 230, A: 255})
		}
	}
	return img
}

// demoImageB is a vertical two-tone split.
func demoImageB() image.Image {
	img := imaging.New(160, 160, color.NRGBA{R: 40, G: 40, B: 80, A: 255})
	for y := 80; y < 160; y++ {
		for x := 0; x < 160; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 180, B: 120, A: 255})
		}
	}
	return img
}

// handleHealth returns health status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"mode":   "standalone",
	})
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	stage    *detect.Stage
	hub      *resultHub
	cropSize int
}

// submitResponse is returned by /v1/submit and /v1/test entries.
type submitResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Result    string `json:"result,omitempty"`
}

// handleSubmit accepts a raw image body, pushes it through the pipeline and
// waits briefly for the terminal result.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil || len(body) == 0 {
		http.Error(w, "image body is required", http.StatusBadRequest)
		return
	}

	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "upload.jpg"
	}

	result, ok := h.runThrough(requestID, filename, body)
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		// Dropped (malformed image) or still pending; either way there is
		// no terminal result to report
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(submitResponse{RequestID: requestID, Status: string(envelope.StatusPending)})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(submitResponse{
		RequestID: requestID,
		Status:    string(result.Status()),
		Result:    result.Result,
	})
}

// runThrough feeds one image into the detection stage and waits for its
// terminal result.
func (h *Handler) runThrough(requestID, filename string, imageBytes []byte) (*envelope.Result, bool) {
	payload, err := json.Marshal(envelope.InboundImage{
		Encoded:   base64.StdEncoding.EncodeToString(imageBytes),
		RequestID: requestID,
		Filename:  filename,
	})
	if err != nil {
		return nil, false
	}

	h.stage.Handle("standalone/submit", payload)
	return h.hub.wait(requestID, 5*time.Second)
}

// handleTest runs the built-in end-to-end check: one demo face image that
// should be recognized and one blank image that should come back no-face.
func (h *Handler) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not allowed (use GET or POST)", http.StatusMethodNotAllowed)
		return
	}

	log.Println("=== Running End-to-End Test ===")

	// Step 1: Recognized path with the demo identity
	log.Println("Step 1: Submitting demo face image...")
	faceJPEG, err := vision.EncodeJPEG(demoImageA())
	if err != nil {
		http.Error(w, fmt.Sprintf("encode failed: %v", err), http.StatusInternalServerError)
		return
	}
	faceResult, ok := h.runThrough(uuid.New().String(), "demo-face.jpg", faceJPEG)
	if !ok {
		http.Error(w, "no result for demo face image", http.StatusInternalServerError)
		return
	}
	log.Printf("✓ Demo face image result: %s", faceResult.Result)

	// Step 2: No-face path with a uniform image
	log.Println("Step 2: Submitting blank image...")
	blankJPEG, err := vision.EncodeJPEG(imaging.New(120, 120, color.NRGBA{R: 128, G: 128, B: 128, A: 255}))
	if err != nil {
		http.Error(w, fmt.Sprintf("encode failed: %v", err), http.StatusInternalServerError)
		return
	}
	blankResult, ok := h.runThrough(uuid.New().String(), "blank.jpg", blankJPEG)
	if !ok {
		http.Error(w, "no result for blank image", http.StatusInternalServerError)
		return
	}
	log.Printf("✓ Blank image result: %s", blankResult.Result)

	log.Println("=== Test Complete ===")

	response := map[string]interface{}{
		"test_status": "success",
		"face": submitResponse{
			RequestID: faceResult.RequestID,
			Status:    string(faceResult.Status()),
			Result:    faceResult.Result,
		},
		"no_face": submitResponse{
			RequestID: blankResult.RequestID,
			Status:    string(blankResult.Status()),
			Result:    blankResult.Result,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
