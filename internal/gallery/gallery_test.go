package gallery

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntries() []Entry {
	return []Entry{
		{Label: "alice", Embedding: []float32{0, 0}},
		{Label: "bob", Embedding: []float32{10, 0}},
		{Label: "bob", Embedding: []float32{12, 0}},
		{Label: "carol", Embedding: []float32{0, 10}},
	}
}

func TestNewValidation(t *testing.T) {
	t.Run("valid entries", func(t *testing.T) {
		g, err := New(testEntries())
		require.NoError(t, err)
		assert.Equal(t, 4, g.Len())
		assert.Equal(t, 2, g.Dim())
		assert.Equal(t, []string{"alice", "bob", "carol"}, g.Labels())
	})

	t.Run("empty gallery is buildable", func(t *testing.T) {
		g, err := New(nil)
		require.NoError(t, err)
		assert.Equal(t, 0, g.Len())
	})

	t.Run("missing label", func(t *testing.T) {
		_, err := New([]Entry{{Embedding: []float32{1}}})
		assert.Error(t, err)
	})

	t.Run("missing embedding", func(t *testing.T) {
		_, err := New([]Entry{{Label: "alice"}})
		assert.Error(t, err)
	})

	t.Run("inconsistent dimensions", func(t *testing.T) {
		_, err := New([]Entry{
			{Label: "alice", Embedding: []float32{1, 2}},
			{Label: "bob", Embedding: []float32{1, 2, 3}},
		})
		assert.Error(t, err)
	})
}

func TestMatch(t *testing.T) {
	g, err := New(testEntries())
	require.NoError(t, err)

	t.Run("nearest entry wins", func(t *testing.T) {
		label, dist, err := g.Match([]float32{9, 0})
		require.NoError(t, err)
		assert.Equal(t, "bob", label)
		assert.InDelta(t, 1.0, dist, 1e-9)
	})

	t.Run("tie keeps the earliest entry", func(t *testing.T) {
		// Equidistant from bob's first reference (10,0) and carol's (0,10).
		label, _, err := g.Match([]float32{5, 5})
		require.NoError(t, err)
		assert.Equal(t, "bob", label)
	})

	t.Run("repeated matches are identical", func(t *testing.T) {
		probe := []float32{3, 4}
		first, firstDist, err := g.Match(probe)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			label, dist, err := g.Match(probe)
			require.NoError(t, err)
			assert.Equal(t, first, label)
			assert.Equal(t, firstDist, dist)
		}
	})

	t.Run("empty gallery", func(t *testing.T) {
		empty, err := New(nil)
		require.NoError(t, err)
		_, _, err = empty.Match([]float32{1, 2})
		assert.ErrorIs(t, err, ErrEmptyGallery)
	})

	t.Run("probe dimension mismatch", func(t *testing.T) {
		_, _, err := g.Match([]float32{1, 2, 3})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestEuclideanDistance(t *testing.T) {
	dist, err := EuclideanDistance([]float32{0, 0}, []float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, dist, 1e-9)

	_, err = EuclideanDistance([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestLoad(t *testing.T) {
	t.Run("valid artifact", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gallery.json")
		artifact := `[
			{"label": "alice", "embedding": [0.1, 0.2]},
			{"label": "bob", "embedding": [0.9, 0.8]}
		]`
		require.NoError(t, os.WriteFile(path, []byte(artifact), 0o644))

		g, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 2, g.Len())

		label, _, err := g.Match([]float32{0.85, 0.85})
		require.NoError(t, err)
		assert.Equal(t, "bob", label)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("malformed artifact", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gallery.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestLazy(t *testing.T) {
	t.Run("loads once and memoizes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gallery.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"label":"alice","embedding":[1]}]`), 0o644))

		lazy := NewLazy(path)
		first, err := lazy.Get()
		require.NoError(t, err)

		// Removing the file must not matter once loaded.
		require.NoError(t, os.Remove(path))
		second, err := lazy.Get()
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("failed load retries on next call", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gallery.json")
		lazy := NewLazy(path)

		_, err := lazy.Get()
		require.Error(t, err)

		require.NoError(t, os.WriteFile(path, []byte(`[{"label":"alice","embedding":[1]}]`), 0o644))
		g, err := lazy.Get()
		require.NoError(t, err)
		assert.Equal(t, 1, g.Len())
	})

	t.Run("concurrent first use", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gallery.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"label":"alice","embedding":[1]}]`), 0o644))

		lazy := NewLazy(path)
		var wg sync.WaitGroup
		results := make([]*Gallery, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				g, err := lazy.Get()
				assert.NoError(t, err)
				results[i] = g
			}(i)
		}
		wg.Wait()

		for i := 1; i < 8; i++ {
			assert.Same(t, results[0], results[i])
		}
	})
}
