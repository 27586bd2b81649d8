// Package vision provides the face detection and embedding capabilities the
// pipeline stages depend on. Models run behind narrow adapter interfaces so
// stages can be exercised with deterministic stand-ins.
package vision

import (
	"context"
	"image"
)

// Detector locates the primary face in an image
type Detector interface {
	// Detect returns the face crop and true when a face is found,
	// or found=false when the image contains no detectable face.
	Detect(ctx context.Context, img image.Image) (crop image.Image, found bool, err error)
}

// Embedder maps a face crop to an embedding vector
type Embedder interface {
	Embed(ctx context.Context, crop image.Image) ([]float32, error)
}
