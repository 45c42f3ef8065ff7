// Package imaging validates uploaded images without fully decoding them.
package imaging

import (
	"bytes"
	"errors"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// MaxDimension is the largest accepted width or height for uploads.
const MaxDimension = 4096

var (
	// ErrInvalidImage is returned for bytes that do not decode as a
	// supported image format.
	ErrInvalidImage = errors.New("invalid image")
	// ErrTooLarge is returned when either dimension exceeds MaxDimension.
	ErrTooLarge = errors.New("image dimensions too large")
)

// Info describes a decoded image header.
type Info struct {
	Width  int
	Height int
	Format string // "png", "jpeg", "gif", "webp"
}

// Inspector reports the dimensions and format of raw image bytes.
type Inspector interface {
	Inspect(data []byte) (Info, error)
}

// StdInspector decodes image headers with the standard library decoders.
type StdInspector struct{}

// Inspect parses only the image header, so oversized files are rejected
// before any pixel data is decoded.
func (StdInspector) Inspect(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, ErrInvalidImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, ErrInvalidImage
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return Info{}, ErrTooLarge
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}
