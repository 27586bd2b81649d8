package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/simple-face-pipeline/pkg/client"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Get image path from command line
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run test-face-recognition.go <image-file>")
		os.Exit(1)
	}
	imagePath := os.Args[1]

	// Initialize pipeline client
	endpoint := os.Getenv("MQTT_ENDPOINT")
	if endpoint == "" {
		endpoint = "tcp://localhost:1883"
	}

	dbURL := os.Getenv("QUEUE_DATABASE_URL")
	if dbURL == "" {
		log.Fatal("QUEUE_DATABASE_URL not set")
	}

	c, err := client.New(client.Config{
		Endpoint:    endpoint,
		ClientID:    "test-face-recognition",
		Topic:       os.Getenv("MQTT_TOPIC"),
		DatabaseURL: dbURL,
		ResultQueue: os.Getenv("RESULT_QUEUE_NAME"),
	})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer c.Close()

	fmt.Printf("Submitting image for recognition: %s\n", imagePath)

	// Submit over MQTT
	requestID, err := c.SubmitFile(imagePath)
	if err != nil {
		log.Fatalf("Failed to submit image: %v", err)
	}

	fmt.Printf("✓ Image submitted\n")
	fmt.Printf("  Request ID: %s\n", requestID)

	// Wait for the terminal result to land on the result queue
	fmt.Printf("\nWaiting for result...\n")
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		results, err := c.Results(context.Background(), 10)
		if err != nil {
			log.Fatalf("Failed to poll results: %v", err)
		}
		for _, res := range results {
			if res.RequestID != requestID {
				continue
			}
			fmt.Printf("✓ Recognition complete\n")
			fmt.Printf("  Result: %s\n", res.Result)
			return
		}
		time.Sleep(time.Second)
	}

	fmt.Printf("No result after 30s; check the worker logs:\n")
	fmt.Printf("  grep %s worker.log\n", requestID[:8])
}
