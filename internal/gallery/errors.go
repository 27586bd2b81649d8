package gallery

import "errors"

var (
	// ErrEmptyGallery is returned when matching against a gallery with no entries
	ErrEmptyGallery = errors.New("gallery has no entries")

	// ErrDimensionMismatch is returned when vector lengths differ
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
