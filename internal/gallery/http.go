package gallery

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// HTTPSource fetches the gallery artifact from an enrollment service on first
// use. Like Lazy, a failed fetch is not cached: the next caller retries, so
// recognition recovers once the service is reachable. Safe for concurrent use.
type HTTPSource struct {
	url        string
	httpClient *http.Client

	mu sync.Mutex
	g  *Gallery
}

// NewHTTPSource creates a lazy HTTP loader for the artifact at url. Nothing
// is fetched until the first Get.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Get returns the gallery, fetching the artifact if this is the first use.
func (s *HTTPSource) Get() (*Gallery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.g != nil {
		return s.g, nil
	}

	g, err := s.fetch()
	if err != nil {
		return nil, fmt.Errorf("gallery fetch failed: %w", err)
	}
	s.g = g
	return s.g, nil
}

func (s *HTTPSource) fetch() (*Gallery, error) {
	resp, err := s.httpClient.Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to download gallery artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery artifact: %w", err)
	}
	return Parse(data)
}
