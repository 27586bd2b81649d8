package envelope

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// InboundImage represents an image submission published to the device topic.
// The request_id is assigned by the caller and travels untouched through
// every later hop; the pipeline never invents one.
type InboundImage struct {
	Encoded   string `json:"encoded"` // base64 image bytes
	RequestID string `json:"request_id"`
	Filename  string `json:"filename"`
}

// FaceMessage represents a detected face crop enqueued for recognition.
type FaceMessage struct {
	RequestID string `json:"request_id"`
	Filename  string `json:"filename"`
	Face      string `json:"face"` // base64 normalized crop
}

// Result represents a terminal outcome delivered on the result queue.
// Filename is set on the no-face path and absent on the recognized path,
// matching what downstream consumers already parse.
type Result struct {
	RequestID string `json:"request_id"`
	Filename  string `json:"filename,omitempty"`
	Result    string `json:"result"`
}

// ResultNoFace is the terminal result for images without a detectable face.
const ResultNoFace = "No-Face"

// Status describes where a request sits in its recognition lifecycle
type Status string

// Status constants
const (
	StatusPending    Status = "pending"
	StatusNoFace     Status = "no_face"
	StatusRecognized Status = "recognized"
	StatusFailed     Status = "failed"
)

// DecodeInbound parses and validates an inbound topic message.
// Any missing or empty field makes the whole message malformed.
func DecodeInbound(raw []byte) (*InboundImage, error) {
	var msg InboundImage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if msg.RequestID == "" {
		return nil, ErrMissingRequestID
	}
	if msg.Encoded == "" {
		return nil, ErrMissingPayload
	}
	if msg.Filename == "" {
		return nil, ErrMissingFilename
	}
	return &msg, nil
}

// Payload decodes the base64 image bytes.
func (m *InboundImage) Payload() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(m.Encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return data, nil
}

// DecodeFace parses and validates a work queue record.
// Filename is optional here; recognition keys everything off request_id.
func DecodeFace(raw []byte) (*FaceMessage, error) {
	var msg FaceMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if msg.RequestID == "" {
		return nil, ErrMissingRequestID
	}
	if msg.Face == "" {
		return nil, ErrMissingPayload
	}
	return &msg, nil
}

// FaceBytes decodes the base64 crop bytes.
func (m *FaceMessage) FaceBytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(m.Face)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return data, nil
}

// Status classifies a terminal result.
func (m *Result) Status() Status {
	if m.Result == ResultNoFace {
		return StatusNoFace
	}
	return StatusRecognized
}

// DecodeResult parses a result queue record. Used by result consumers;
// the pipeline itself only produces these.
func DecodeResult(raw []byte) (*Result, error) {
	var msg Result
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if msg.RequestID == "" {
		return nil, ErrMissingRequestID
	}
	return &msg, nil
}
