package gallery

import (
	"fmt"
	"sync"
)

// Lazy loads a gallery artifact on first use and memoizes the result. A
// failed load is not cached: the next caller retries, so a gallery that
// appears after startup still gets picked up. Safe for concurrent use.
type Lazy struct {
	path string

	mu sync.Mutex
	g  *Gallery
}

// NewLazy creates a lazy loader for the artifact at path. Nothing is read
// until the first Get.
func NewLazy(path string) *Lazy {
	return &Lazy{path: path}
}

// Get returns the gallery, loading the artifact if this is the first use.
func (l *Lazy) Get() (*Gallery, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.g != nil {
		return l.g, nil
	}

	g, err := Load(l.path)
	if err != nil {
		return nil, fmt.Errorf("gallery load failed: %w", err)
	}
	l.g = g
	return l.g, nil
}
