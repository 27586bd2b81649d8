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
	"github.com/tendant/simple-face-pipeline/internal/detect"
	"github.com/tendant/simple-face-pipeline/internal/iot"
	"github.com/tendant/simple-face-pipeline/internal/metrics"
	"github.com/tendant/simple-face-pipeline/internal/queue"
	"github.com/tendant/simple-face-pipeline/internal/vision"
)

// Detection worker: subscribes to the device topic, runs face detection on
// every published image and routes crops to the work queue or no-face
// results to the result queue.
func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	cfg := config.LoadDetection()

	// Queues are required; durability lives in Postgres
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

	// Use the detection service if DETECTOR_URL is set, otherwise fall back
	// to the deterministic mock
	var detector vision.Detector
	if cfg.DetectorURL != "" {
		log.Printf("Using detection service at: %s", cfg.DetectorURL)
		detector = vision.NewHTTPDetector(cfg.DetectorURL)
	} else {
		log.Printf("Using mock detector (set DETECTOR_URL for a real model)")
		detector = vision.NewMockDetector()
	}

	stage := detect.NewStage(detector, work, results, cfg.CropSize)
	log.Printf("✓ Detection stage ready")
	log.Printf("  Work queue: %s", cfg.WorkQueueName)
	log.Printf("  Result queue: %s", cfg.ResultQueueName)
	log.Printf("  Crop size: %dx%d", cfg.CropSize, cfg.CropSize)

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

	// Connect and subscribe; messages flow from here on
	conn, err := iot.Connect(iot.Config{
		Endpoint: cfg.Endpoint,
		ClientID: cfg.ClientID,
		CertFile: cfg.CertFile,
		KeyFile:  cfg.KeyFile,
		CAFile:   cfg.CAFile,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MQTT broker: %v", err)
	}

	if err := conn.Subscribe(cfg.Topic, iot.QoSAtLeastOnce, stage.Handle); err != nil {
		conn.Disconnect()
		log.Fatalf("Failed to subscribe: %v", err)
	}

	log.Printf("✓ Detection worker running, waiting for images on %s", cfg.Topic)

	// Block until SIGINT/SIGTERM, then disconnect in order
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("Shutting down...")
	conn.Disconnect()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Monitoring server forced to shutdown: %v", err)
	}

	log.Println("Detection worker stopped")
}
