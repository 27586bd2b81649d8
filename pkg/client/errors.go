package client

import "errors"

var (
	// ErrNoEndpoint is returned when no broker endpoint is configured
	ErrNoEndpoint = errors.New("no broker endpoint configured")

	// ErrNoClientID is returned when no MQTT client ID is configured
	ErrNoClientID = errors.New("no client ID configured")

	// ErrNoResultQueue is returned when Results is called on a submit-only client
	ErrNoResultQueue = errors.New("no result queue configured")
)
