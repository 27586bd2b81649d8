package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
)

// HTTPDetector calls a face detection service over HTTP. The service takes a
// JPEG body and answers with the bounding box of the primary face, if any.
type HTTPDetector struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPDetector creates a detector backed by the service at baseURL.
func NewHTTPDetector(baseURL string) *HTTPDetector {
	return &HTTPDetector{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type boundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type detectResponse struct {
	Found bool         `json:"found"`
	Box   *boundingBox `json:"box,omitempty"`
}

// Detect posts the image to the detection service and crops the reported box.
func (d *HTTPDetector) Detect(ctx context.Context, img image.Image) (image.Image, bool, error) {
	data, err := EncodeJPEG(img)
	if err != nil {
		return nil, false, err
	}

	url := fmt.Sprintf("%s/v1/detect", d.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("detection request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("detection failed with status %d", resp.StatusCode)
	}

	var result detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, false, fmt.Errorf("failed to decode detection response: %w", err)
	}

	if !result.Found || result.Box == nil {
		return nil, false, nil
	}
	if result.Box.Width <= 0 || result.Box.Height <= 0 {
		return nil, false, fmt.Errorf("detection returned invalid box %dx%d", result.Box.Width, result.Box.Height)
	}

	rect := image.Rect(result.Box.X, result.Box.Y, result.Box.X+result.Box.Width, result.Box.Y+result.Box.Height)
	crop := imaging.Crop(img, rect)
	if crop.Bounds().Empty() {
		return nil, false, fmt.Errorf("detection box %v lies outside the image", rect)
	}
	return crop, true, nil
}

// HTTPEmbedder calls a face embedding service over HTTP. The service takes a
// JPEG crop and answers with the embedding vector.
type HTTPEmbedder struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPEmbedder creates an embedder backed by the service at baseURL.
func NewHTTPEmbedder(baseURL string) *HTTPEmbedder {
	return &HTTPEmbedder{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed posts the crop to the embedding service.
func (e *HTTPEmbedder) Embed(ctx context.Context, crop image.Image) ([]float32, error) {
	data, err := EncodeJPEG(crop)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/embed", e.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding failed with status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector")
	}
	return result.Embedding, nil
}
