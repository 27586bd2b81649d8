package vision

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
)

// MockDetector is a deterministic stand-in used when no detection service is
// configured (standalone mode, tests). It reports a centered square crop for
// any image with pixel variation and no face for uniform images, so both
// pipeline outcomes stay reachable without a model.
type MockDetector struct{}

// NewMockDetector creates a mock detector.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// Detect returns the centered half-size square of the image, or found=false
// when the image is uniform.
func (d *MockDetector) Detect(ctx context.Context, img image.Image) (image.Image, bool, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, false, nil
	}

	lo, hi := intensityRange(imaging.Clone(img))
	if lo == hi {
		return nil, false, nil
	}

	side := bounds.Dx()
	if bounds.Dy() < side {
		side = bounds.Dy()
	}
	if side > 1 {
		side /= 2
	}
	return imaging.CropCenter(img, side, side), true, nil
}

// MockEmbedder is a deterministic stand-in embedder: the vector is a 4x4 grid
// of mean intensities, so identical crops always embed identically.
type MockEmbedder struct{}

// NewMockEmbedder creates a mock embedder.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// Embed returns a 16-dimensional intensity-grid vector in [0,1].
func (e *MockEmbedder) Embed(ctx context.Context, crop image.Image) ([]float32, error) {
	small := imaging.Resize(crop, 4, 4, imaging.Box)

	vec := make([]float32, 0, 16)
	for i := 0; i < len(small.Pix); i += 4 {
		sum := uint32(small.Pix[i]) + uint32(small.Pix[i+1]) + uint32(small.Pix[i+2])
		vec = append(vec, float32(sum)/(3*255))
	}
	return vec, nil
}
