package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/simple-face-pipeline/internal/config"
	"github.com/tendant/simple-face-pipeline/internal/gallery"
	"github.com/tendant/simple-face-pipeline/internal/metrics"
	"github.com/tendant/simple-face-pipeline/internal/queue"
	"github.com/tendant/simple-face-pipeline/internal/recognize"
	"github.com/tendant/simple-face-pipeline/internal/vision"
)

// Recognition worker: drains the work queue in batches, embeds each face
// crop, matches it against the reference gallery and publishes terminal
// results.
func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	cfg := config.LoadRecognition()

	if cfg.DatabaseURL == "" {
		log.Fatalf("QUEUE_DATABASE_URL is required")
	}

	db, err := queue.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue database: %v", err)
	}
	defer db.Close()

	work, err := queue.NewPostgres(db, cfg.WorkQueueName, 0)
	if err != nil {
		log.Fatalf("Failed to open work queue: %v", err)
	}
	results, err := queue.NewPostgres(db, cfg.ResultQueueName, 0)
	if err != nil {
		log.Fatalf("Failed to open result queue: %v", err)
	}

	// Use the embedding service if EMBEDDER_URL is set, otherwise fall back
	// to the deterministic mock
	var embedder vision.Embedder
	if cfg.EmbedderURL != "" {
		log.Printf("Using embedding service at: %s", cfg.EmbedderURL)
		embedder = vision.NewHTTPEmbedder(cfg.EmbedderURL)
	} else {
		log.Printf("Using mock embedder (set EMBEDDER_URL for a real model)")
		embedder = vision.NewMockEmbedder()
	}

	// The gallery artifact is read on first use, so a worker can start
	// before the artifact is provisioned. GALLERY_URL pulls it from an
	// enrollment service instead of local disk.
	var source recognize.GallerySource
	if cfg.GalleryURL != "" {
		source = gallery.NewHTTPSource(cfg.GalleryURL)
	} else {
		source = gallery.NewLazy(cfg.GalleryPath)
	}

	stage, err := recognize.NewStage(embedder, source, results, cfg.ScratchDir)
	if err != nil {
		log.Fatalf("Failed to initialize recognition stage: %v", err)
	}

	policy := recognize.AckPolicy(cfg.AckPolicy)
	if policy != recognize.AckAll && policy != recognize.AckSucceeded {
		log.Printf("Unknown ack policy %q, using %q", cfg.AckPolicy, recognize.AckAll)
		policy = recognize.AckAll
	}

	consumer := recognize.NewConsumer(work, stage, cfg.BatchSize, cfg.PollInterval, policy)

	log.Printf("✓ Recognition stage ready")
	log.Printf("  Work queue: %s", cfg.WorkQueueName)
	log.Printf("  Result queue: %s", cfg.ResultQueueName)
	if cfg.GalleryURL != "" {
		log.Printf("  Gallery: %s", cfg.GalleryURL)
	} else {
		log.Printf("  Gallery: %s", cfg.GalleryPath)
	}
	log.Printf("  Scratch dir: %s", cfg.ScratchDir)

	// Monitoring endpoints
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: metrics.NewMux(),
	}
	go func() {
		log.Printf("Monitoring endpoints on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Monitoring server failed: %v", err)
		}
	}()

	// Consume until SIGINT/SIGTERM; the batch in flight finishes first
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer.Run(ctx)

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Monitoring server forced to shutdown: %v", err)
	}

	log.Println("Recognition worker stopped")
}
