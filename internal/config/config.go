// Package config collects the environment configuration shared by the
// pipeline workers. Every key is optional and falls back to a development
// default; mains load .env themselves before calling into here.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Detection holds the detect-worker configuration.
type Detection struct {
	// MQTT connection
	Endpoint string
	ClientID string
	Topic    string
	CertFile string
	KeyFile  string
	CAFile   string

	// Queues
	DatabaseURL     string
	WorkQueueName   string
	ResultQueueName string

	// Detection
	DetectorURL string
	CropSize    int

	// Monitoring
	HTTPAddr string
}

// Recognition holds the recognize-worker configuration.
type Recognition struct {
	// Queues
	DatabaseURL     string
	WorkQueueName   string
	ResultQueueName string

	// Recognition
	EmbedderURL string
	GalleryPath string
	GalleryURL  string
	ScratchDir  string

	// Consumer behavior
	BatchSize    int
	PollInterval time.Duration
	AckPolicy    string

	// Monitoring
	HTTPAddr string
}

// LoadDetection reads the detect-worker configuration from the environment.
func LoadDetection() Detection {
	clientID := getenv("MQTT_CLIENT_ID", "face-detect-worker")
	return Detection{
		Endpoint:        getenv("MQTT_ENDPOINT", "tcp://localhost:1883"),
		ClientID:        clientID,
		Topic:           getenv("MQTT_TOPIC", "clients/"+clientID),
		CertFile:        os.Getenv("MQTT_CERT_PATH"),
		KeyFile:         os.Getenv("MQTT_KEY_PATH"),
		CAFile:          os.Getenv("MQTT_CA_PATH"),
		DatabaseURL:     os.Getenv("QUEUE_DATABASE_URL"),
		WorkQueueName:   getenv("WORK_QUEUE_NAME", "face_work"),
		ResultQueueName: getenv("RESULT_QUEUE_NAME", "face_results"),
		DetectorURL:     os.Getenv("DETECTOR_URL"),
		CropSize:        getint("CROP_SIZE", 240),
		HTTPAddr:        getenv("WORKER_HTTP_ADDR", ":8081"),
	}
}

// LoadRecognition reads the recognize-worker configuration from the
// environment.
func LoadRecognition() Recognition {
	return Recognition{
		DatabaseURL:     os.Getenv("QUEUE_DATABASE_URL"),
		WorkQueueName:   getenv("WORK_QUEUE_NAME", "face_work"),
		ResultQueueName: getenv("RESULT_QUEUE_NAME", "face_results"),
		EmbedderURL:     os.Getenv("EMBEDDER_URL"),
		GalleryPath:     getenv("GALLERY_PATH", "gallery.json"),
		GalleryURL:      os.Getenv("GALLERY_URL"),
		ScratchDir:      getenv("SCRATCH_DIR", filepath.Join(os.TempDir(), "faces")),
		BatchSize:       getint("RECOGNIZE_BATCH_SIZE", 10),
		PollInterval:    getduration("RECOGNIZE_POLL_INTERVAL", time.Second),
		AckPolicy:       getenv("RECOGNIZE_ACK_POLICY", "all"),
		HTTPAddr:        getenv("WORKER_HTTP_ADDR", ":8082"),
	}
}

// getenv returns the value of key or fallback when unset or empty.
func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getint parses an integer key, keeping the fallback on bad values.
func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// getduration parses a duration key, keeping the fallback on bad values.
func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
