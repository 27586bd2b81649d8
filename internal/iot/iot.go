// Package iot maintains the MQTT connection the pipeline ingests through.
// Credentials follow device gateway conventions: when all three credential
// paths are configured the connection uses mutual TLS, otherwise plain TCP.
package iot

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// QoSAtLeastOnce matches the delivery guarantee the pipeline assumes from the
// broker.
const QoSAtLeastOnce byte = 1

// Config describes the broker connection.
type Config struct {
	Endpoint string // scheme://host:port, e.g. ssl://gateway:8883
	ClientID string

	// Mutual TLS credentials; all three must be set to enable TLS
	CertFile string
	KeyFile  string
	CAFile   string

	ConnectTimeout time.Duration
}

// Conn is an established broker connection.
type Conn struct {
	client mqtt.Client
}

// Handler receives one inbound message.
type Handler func(topic string, payload []byte)

// Connect dials the broker. Startup fails when the broker cannot be reached
// inside the connect timeout; once connected, drops are healed by
// auto-reconnect and subscriptions are restored by the client.
func Connect(cfg Config) (*Conn, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Endpoint)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetCleanSession(false)
	opts.SetResumeSubs(true)

	if cfg.CertFile != "" && cfg.KeyFile != "" && cfg.CAFile != "" {
		tlsCfg, err := newTLSConfig(cfg.CertFile, cfg.KeyFile, cfg.CAFile)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnect = func(c mqtt.Client) {
		log.Printf("✓ Connected to MQTT broker %s", cfg.Endpoint)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.Printf("MQTT connection lost, waiting for auto-reconnect: %v", err)
	}

	client := mqtt.NewClient(opts)
	log.Printf("Connecting to MQTT broker %s as %s", cfg.Endpoint, cfg.ClientID)

	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connection timeout after %s", cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return &Conn{client: client}, nil
}

// newTLSConfig builds the mutual TLS configuration from the credential files.
func newTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates parsed from %s", caFile)
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
	}, nil
}

// Subscribe registers handler for topic. The broker redelivers unacknowledged
// messages at QoS 1, so handlers must tolerate duplicates.
func (c *Conn) Subscribe(topic string, qos byte, handler Handler) error {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		handler(m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe failed on %s: %w", topic, err)
	}

	log.Printf("✓ Subscribed to %s (qos %d)", topic, qos)
	return nil
}

// Publish sends payload to topic and waits for the broker handoff.
func (c *Conn) Publish(topic string, qos byte, payload []byte) error {
	token := c.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed on %s: %w", topic, err)
	}
	return nil
}

// Disconnect closes the connection after a short grace period so in-flight
// acknowledgements drain.
func (c *Conn) Disconnect() {
	c.client.Disconnect(250)
	log.Printf("MQTT disconnected")
}
