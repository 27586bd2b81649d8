package vision

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// DefaultCropSize is the edge length of normalized face crops.
const DefaultCropSize = 240

// Normalize produces the fixed-size RGB crop the recognition stage expects:
// the image is resized to size x size using Lanczos resampling and its
// intensity is rescaled so the darkest value maps to 0 and the brightest to
// 255. A crop with no dynamic range comes back uniformly black rather than
// dividing by zero.
func Normalize(img image.Image, size int) *image.NRGBA {
	resized := imaging.Resize(img, size, size, imaging.Lanczos)

	lo, hi := intensityRange(resized)
	if hi == lo {
		return imaging.New(size, size, color.NRGBA{A: 255})
	}

	scale := 255.0 / float64(hi-lo)
	for i := 0; i < len(resized.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			resized.Pix[i+c] = uint8(float64(resized.Pix[i+c]-lo)*scale + 0.5)
		}
	}
	return resized
}

// intensityRange returns the min and max channel values across R, G and B.
func intensityRange(img *image.NRGBA) (lo, hi uint8) {
	lo, hi = 255, 0
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := img.Pix[i+c]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return lo, hi
}
