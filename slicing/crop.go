package slicing

import (
	stdimage "image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// CropTile extracts the pixel region covered by a tile.
//
// The returned image has its own backing buffer, so concurrent detector calls
// on different tiles never share pixel memory.
//
// Arguments:
//   - src: The full source image.
//   - tile: The region to extract.
//
// Returns:
//   - *image.NRGBA: The tile pixels.
//   - error: An error when the tile falls outside the source bounds.
func CropTile(src stdimage.Image, tile Tile) (*stdimage.NRGBA, error) {
	if src == nil {
		return nil, errors.New("nil source image")
	}

	region := stdimage.Rect(tile.X, tile.Y, tile.X+tile.Width, tile.Y+tile.Height)
	bounds := src.Bounds()
	if !region.In(stdimage.Rect(0, 0, bounds.Dx(), bounds.Dy())) {
		return nil, errors.Errorf("tile %v outside image bounds %dx%d", region, bounds.Dx(), bounds.Dy())
	}

	cropped := imaging.Crop(src, region.Add(bounds.Min))
	if cropped.Bounds().Dx() != tile.Width || cropped.Bounds().Dy() != tile.Height {
		return nil, errors.Errorf("crop produced %dx%d, want %dx%d",
			cropped.Bounds().Dx(), cropped.Bounds().Dy(), tile.Width, tile.Height)
	}
	return cropped, nil
}
