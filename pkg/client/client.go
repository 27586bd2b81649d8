package client

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/tendant/simple-face-pipeline/internal/iot"
	"github.com/tendant/simple-face-pipeline/internal/queue"
	"github.com/tendant/simple-face-pipeline/pkg/envelope"
)

// Config holds the configuration for connecting a producer to the pipeline
type Config struct {
	Endpoint string // MQTT broker endpoint, e.g. tcp://localhost:1883
	ClientID string // MQTT client ID for this producer
	Topic    string // Topic the detection worker subscribes to (default: clients/<ClientID>)

	// Mutual TLS credentials; all three must be set to enable TLS
	CertFile string
	KeyFile  string
	CAFile   string

	DatabaseURL string // Optional: Postgres URL for polling recognition results
	ResultQueue string // Result queue name (default: face_results)
}

// publisher sends one payload to a broker topic
type publisher interface {
	Publish(topic string, qos byte, payload []byte) error
}

// Client submits images to the pipeline over MQTT and optionally polls
// recognition results from the result queue
type Client struct {
	pub     publisher
	conn    *iot.Conn
	topic   string
	db      *sql.DB
	results queue.Consumer
}

// New connects a new pipeline client. Results polling is enabled only when
// cfg.DatabaseURL is set; a submit-only client may leave it empty.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if cfg.ClientID == "" {
		return nil, ErrNoClientID
	}
	if cfg.Topic == "" {
		cfg.Topic = "clients/" + cfg.ClientID
	}
	if cfg.ResultQueue == "" {
		cfg.ResultQueue = "face_results"
	}

	conn, err := iot.Connect(iot.Config{
		Endpoint: cfg.Endpoint,
		ClientID: cfg.ClientID,
		CertFile: cfg.CertFile,
		KeyFile:  cfg.KeyFile,
		CAFile:   cfg.CAFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	c := &Client{
		pub:   conn,
		conn:  conn,
		topic: cfg.Topic,
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			conn.Disconnect()
			return nil, fmt.Errorf("failed to open queue database: %w", err)
		}
		results, err := queue.NewPostgres(db, cfg.ResultQueue, 30*time.Second)
		if err != nil {
			db.Close()
			conn.Disconnect()
			return nil, fmt.Errorf("failed to open result queue: %w", err)
		}
		c.db = db
		c.results = results
	}

	return c, nil
}

// SubmitFile reads an image from disk and submits it under a fresh request ID
func (c *Client) SubmitFile(path string) (string, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return c.Submit(filepath.Base(path), image)
}

// Submit publishes one image and returns the request ID assigned to it
func (c *Client) Submit(filename string, image []byte) (string, error) {
	requestID := uuid.New().String()
	if err := c.SubmitAs(requestID, filename, image); err != nil {
		return "", err
	}
	return requestID, nil
}

// SubmitAs publishes one image under a caller-chosen request ID
func (c *Client) SubmitAs(requestID, filename string, image []byte) error {
	msg := envelope.InboundImage{
		Encoded:   base64.StdEncoding.EncodeToString(image),
		RequestID: requestID,
		Filename:  filename,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := c.pub.Publish(c.topic, iot.QoSAtLeastOnce, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", c.topic, err)
	}
	return nil
}

// Results drains up to max recognition results from the result queue. Drained
// results are acknowledged and will not be delivered again.
func (c *Client) Results(ctx context.Context, max int) ([]envelope.Result, error) {
	if c.results == nil {
		return nil, ErrNoResultQueue
	}

	msgs, err := c.results.Receive(ctx, max)
	if err != nil {
		return nil, fmt.Errorf("failed to receive results: %w", err)
	}

	out := make([]envelope.Result, 0, len(msgs))
	for _, msg := range msgs {
		res, err := envelope.DecodeResult(msg.Body)
		if err != nil {
			// The result queue only carries envelopes this module wrote;
			// anything else is acknowledged and skipped.
			_ = c.results.Ack(ctx, msg)
			continue
		}
		if err := c.results.Ack(ctx, msg); err != nil {
			return out, fmt.Errorf("failed to ack result: %w", err)
		}
		out = append(out, *res)
	}
	return out, nil
}

// Close disconnects from the broker and releases the result queue
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Disconnect()
	}
	if c.db != nil {
		c.db.Close()
	}
}
