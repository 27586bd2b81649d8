package vision

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDetector(t *testing.T) {
	ctx := context.Background()

	t.Run("face found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/detect", r.URL.Path)
			assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
			w.Write([]byte(`{"found":true,"box":{"x":10,"y":10,"width":20,"height":20}}`))
		}))
		defer srv.Close()

		crop, found, err := NewHTTPDetector(srv.URL).Detect(ctx, gradientImage(64, 64))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 20, crop.Bounds().Dx())
		assert.Equal(t, 20, crop.Bounds().Dy())
	})

	t.Run("no face", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"found":false}`))
		}))
		defer srv.Close()

		_, found, err := NewHTTPDetector(srv.URL).Detect(ctx, gradientImage(64, 64))
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("service error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, _, err := NewHTTPDetector(srv.URL).Detect(ctx, gradientImage(64, 64))
		assert.Error(t, err)
	})

	t.Run("box outside the image", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"found":true,"box":{"x":500,"y":500,"width":20,"height":20}}`))
		}))
		defer srv.Close()

		_, _, err := NewHTTPDetector(srv.URL).Detect(ctx, gradientImage(64, 64))
		assert.Error(t, err)
	})
}

func TestHTTPEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("vector returned", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/embed", r.URL.Path)
			w.Write([]byte(`{"embedding":[0.25,0.5,0.75]}`))
		}))
		defer srv.Close()

		vec, err := NewHTTPEmbedder(srv.URL).Embed(ctx, gradientImage(32, 32))
		require.NoError(t, err)
		assert.Equal(t, []float32{0.25, 0.5, 0.75}, vec)
	})

	t.Run("empty vector rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"embedding":[]}`))
		}))
		defer srv.Close()

		_, err := NewHTTPEmbedder(srv.URL).Embed(ctx, gradientImage(32, 32))
		assert.Error(t, err)
	})
}
