// Package gallery holds the labeled reference embeddings that recognition
// matches probe vectors against.
package gallery

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Entry is one labeled reference embedding. A label may appear in any number
// of entries.
type Entry struct {
	Label     string    `json:"label"`
	Embedding []float32 `json:"embedding"`
}

// Gallery is an immutable set of reference embeddings. It is safe for
// concurrent readers once constructed.
type Gallery struct {
	entries []Entry
	dim     int
}

// New builds a gallery from entries, validating that every entry carries a
// label and that all embeddings share one dimensionality. An empty gallery is
// valid to build; matching against it fails per probe.
func New(entries []Entry) (*Gallery, error) {
	g := &Gallery{entries: entries}
	for i, e := range entries {
		if e.Label == "" {
			return nil, fmt.Errorf("gallery entry %d has no label", i)
		}
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("gallery entry %d (%s) has no embedding", i, e.Label)
		}
		if g.dim == 0 {
			g.dim = len(e.Embedding)
		} else if len(e.Embedding) != g.dim {
			return nil, fmt.Errorf("gallery entry %d (%s) has dimension %d, want %d", i, e.Label, len(e.Embedding), g.dim)
		}
	}
	return g, nil
}

// Parse decodes a gallery artifact: a JSON array of {label, embedding}
// entries.
func Parse(data []byte) (*Gallery, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse gallery artifact: %w", err)
	}
	return New(entries)
}

// Load reads a gallery artifact from disk.
func Load(path string) (*Gallery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery artifact: %w", err)
	}
	return Parse(data)
}

// Len returns the number of reference embeddings.
func (g *Gallery) Len() int {
	return len(g.entries)
}

// Dim returns the embedding dimensionality, or 0 for an empty gallery.
func (g *Gallery) Dim() int {
	return g.dim
}

// Labels returns the distinct labels in first-seen order.
func (g *Gallery) Labels() []string {
	seen := make(map[string]bool, len(g.entries))
	var labels []string
	for _, e := range g.entries {
		if !seen[e.Label] {
			seen[e.Label] = true
			labels = append(labels, e.Label)
		}
	}
	return labels
}

// Match returns the label of the reference embedding nearest to probe by
// Euclidean distance. Ties keep the earliest entry, so results are stable for
// a given artifact.
func (g *Gallery) Match(probe []float32) (string, float64, error) {
	if len(g.entries) == 0 {
		return "", 0, ErrEmptyGallery
	}

	bestLabel := ""
	bestDist := math.Inf(1)
	for _, e := range g.entries {
		dist, err := EuclideanDistance(probe, e.Embedding)
		if err != nil {
			return "", 0, err
		}
		if dist < bestDist {
			bestDist = dist
			bestLabel = e.Label
		}
	}
	return bestLabel, bestDist, nil
}

// Get makes a loaded Gallery usable wherever a lazily loading source is
// accepted.
func (g *Gallery) Get() (*Gallery, error) {
	return g, nil
}

// EuclideanDistance computes the L2 distance between two vectors.
func EuclideanDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
