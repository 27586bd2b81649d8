package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradientImage(w, h int) *image.NRGBA {
	img := imaging.New(w, h, color.NRGBA{A: 255})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / (w - 1))
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func uniformImage(w, h int, v uint8) *image.NRGBA {
	return imaging.New(w, h, color.NRGBA{R: v, G: v, B: v, A: 255})
}

func TestNormalizeOutputSize(t *testing.T) {
	out := Normalize(gradientImage(33, 77), DefaultCropSize)
	assert.Equal(t, DefaultCropSize, out.Bounds().Dx())
	assert.Equal(t, DefaultCropSize, out.Bounds().Dy())
}

func TestNormalizeStretchesIntensity(t *testing.T) {
	// Two-tone source: darkest value 100, brightest 200.
	img := imaging.New(240, 240, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	for y := 0; y < 240; y++ {
		for x := 120; x < 240; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}

	out := Normalize(img, 240)

	lo, hi := intensityRange(out)
	assert.Equal(t, uint8(0), lo, "darkest value should map to 0")
	assert.Equal(t, uint8(255), hi, "brightest value should map to 255")

	left := out.NRGBAAt(5, 120)
	right := out.NRGBAAt(235, 120)
	assert.Less(t, left.R, uint8(30))
	assert.Greater(t, right.R, uint8(225))
}

func TestNormalizeUniformImageGoesBlack(t *testing.T) {
	out := Normalize(uniformImage(100, 100, 77), 240)

	require.Equal(t, 240, out.Bounds().Dx())
	for i := 0; i < len(out.Pix); i += 4 {
		require.Equal(t, uint8(0), out.Pix[i])
		require.Equal(t, uint8(0), out.Pix[i+1])
		require.Equal(t, uint8(0), out.Pix[i+2])
		require.Equal(t, uint8(255), out.Pix[i+3])
	}
}

func TestCodecRoundTrip(t *testing.T) {
	data, err := EncodeJPEG(gradientImage(32, 32))
	require.NoError(t, err)
	require.NotEmpty(t, data)

	img, err := DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())

	_, err = DecodeImage([]byte("definitely not an image"))
	assert.Error(t, err)
}
