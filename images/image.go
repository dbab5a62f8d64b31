// Package images - Image definition consumed by the slicing pipeline.
package images

import (
	stdimage "image"

	"github.com/pkg/errors"
)

// ErrInvalidImage reports a zero-area or unreadable input image. It aborts a
// pipeline run before any tile work begins.
var ErrInvalidImage = errors.New("invalid image")

// Image pairs decoded pixel data with its dimensions. It is treated as
// immutable for the duration of a pipeline run.
type Image struct {
	// The width of the image in pixels.
	Width int `json:"width" yaml:"width"`
	// The height of the image in pixels.
	Height int `json:"height" yaml:"height"`
	// The decoded pixel buffer.
	Pixels stdimage.Image `json:"-" yaml:"-"`
}

// NewImage wraps decoded pixel data, validating that it is usable.
//
// Arguments:
//   - pixels: The decoded image.
//
// Returns:
//   - Image: The wrapped image.
//   - error: ErrInvalidImage when pixels is nil or has no area.
func NewImage(pixels stdimage.Image) (Image, error) {
	if pixels == nil {
		return Image{}, errors.Wrap(ErrInvalidImage, "nil pixel buffer")
	}
	bounds := pixels.Bounds()
	img := Image{Width: bounds.Dx(), Height: bounds.Dy(), Pixels: pixels}
	return img, img.Validate()
}

// Validate checks the image invariants required before a run.
func (i Image) Validate() error {
	if i.Pixels == nil {
		return errors.Wrap(ErrInvalidImage, "nil pixel buffer")
	}
	if i.Width <= 0 || i.Height <= 0 {
		return errors.Wrapf(ErrInvalidImage, "zero-area dimensions %dx%d", i.Width, i.Height)
	}
	return nil
}
