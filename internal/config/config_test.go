package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// clearEnv blanks every key the loaders read so values exported in the host
// environment cannot leak into the assertions. The loaders treat empty as
// unset, and t.Setenv restores the original values on cleanup.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MQTT_ENDPOINT", "MQTT_CLIENT_ID", "MQTT_TOPIC",
		"MQTT_CERT_PATH", "MQTT_KEY_PATH", "MQTT_CA_PATH",
		"QUEUE_DATABASE_URL", "WORK_QUEUE_NAME", "RESULT_QUEUE_NAME",
		"DETECTOR_URL", "EMBEDDER_URL",
		"GALLERY_PATH", "GALLERY_URL", "SCRATCH_DIR",
		"CROP_SIZE", "WORKER_HTTP_ADDR",
		"RECOGNIZE_BATCH_SIZE", "RECOGNIZE_POLL_INTERVAL", "RECOGNIZE_ACK_POLICY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDetectionDefaults(t *testing.T) {
	clearEnv(t)

	cfg := LoadDetection()

	assert.Equal(t, "tcp://localhost:1883", cfg.Endpoint)
	assert.Equal(t, "face-detect-worker", cfg.ClientID)
	assert.Equal(t, "clients/face-detect-worker", cfg.Topic)
	assert.Equal(t, "face_work", cfg.WorkQueueName)
	assert.Equal(t, "face_results", cfg.ResultQueueName)
	assert.Equal(t, 240, cfg.CropSize)
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Empty(t, cfg.CertFile)
}

func TestLoadDetectionOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MQTT_ENDPOINT", "ssl://gateway:8883")
	t.Setenv("MQTT_CLIENT_ID", "cam-7")
	t.Setenv("CROP_SIZE", "160")

	cfg := LoadDetection()
	assert.Equal(t, "ssl://gateway:8883", cfg.Endpoint)
	assert.Equal(t, "cam-7", cfg.ClientID)
	assert.Equal(t, "clients/cam-7", cfg.Topic, "topic default follows the client id")
	assert.Equal(t, 160, cfg.CropSize)
}

func TestLoadDetectionTopicOverrideWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("MQTT_CLIENT_ID", "cam-7")
	t.Setenv("MQTT_TOPIC", "cameras/lobby")

	cfg := LoadDetection()
	assert.Equal(t, "cameras/lobby", cfg.Topic)
}

func TestLoadRecognitionDefaults(t *testing.T) {
	clearEnv(t)

	cfg := LoadRecognition()

	assert.Equal(t, "gallery.json", cfg.GalleryPath)
	assert.Empty(t, cfg.GalleryURL)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, "all", cfg.AckPolicy)
	assert.Equal(t, ":8082", cfg.HTTPAddr)
	assert.NotEmpty(t, cfg.ScratchDir)
}

func TestLoadRecognitionGalleryURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("GALLERY_URL", "http://enrollment:9000/gallery.json")

	cfg := LoadRecognition()
	assert.Equal(t, "http://enrollment:9000/gallery.json", cfg.GalleryURL)
}

func TestBadNumericValuesKeepDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECOGNIZE_BATCH_SIZE", "not-a-number")
	t.Setenv("RECOGNIZE_POLL_INTERVAL", "-3s")
	t.Setenv("CROP_SIZE", "0")

	rec := LoadRecognition()
	assert.Equal(t, 10, rec.BatchSize)
	assert.Equal(t, time.Second, rec.PollInterval)

	det := LoadDetection()
	assert.Equal(t, 240, det.CropSize)
}
