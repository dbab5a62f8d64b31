// Package slicing - Overlapping tile grids for sliced inference.
//
// Large images defeat single-pass detectors: small objects shrink below the
// model's receptive field once the image is resized to the input resolution.
// Slicing runs the detector over overlapping sub-regions instead, at the cost
// of duplicate detections along tile seams which the merge step reconciles.
package slicing

import (
	"github.com/pkg/errors"

	"github.com/modelship/go-detect/images"
)

// Tile is a rectangular sub-region of an image processed independently by the
// detector.
type Tile struct {
	// X, Y is the tile origin within the image.
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	// Width, Height is the tile extent. X+Width and Y+Height never exceed the
	// image dimensions.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// Full marks the optional whole-image pass used to catch objects larger
	// than a single slice.
	Full bool `json:"full" yaml:"full"`
}

// Rect returns the tile region in corner-coordinate form.
func (t Tile) Rect() images.Rect {
	return images.Rect{
		X1: float32(t.X),
		Y1: float32(t.Y),
		X2: float32(t.X + t.Width),
		Y2: float32(t.Y + t.Height),
	}
}

// Options configure tile grid generation.
type Options struct {
	// SliceWidth, SliceHeight is the tile size in pixels. Must be positive.
	SliceWidth  int `json:"slice_width" yaml:"slice_width"`
	SliceHeight int `json:"slice_height" yaml:"slice_height"`
	// OverlapWidthRatio, OverlapHeightRatio is the fraction of the slice
	// dimension shared by adjacent tiles, in [0, 1).
	OverlapWidthRatio  float32 `json:"overlap_width_ratio" yaml:"overlap_width_ratio"`
	OverlapHeightRatio float32 `json:"overlap_height_ratio" yaml:"overlap_height_ratio"`
	// IncludeFullPass appends one additional tile spanning the entire image.
	IncludeFullPass bool `json:"include_full_pass" yaml:"include_full_pass"`
}

// Validate checks the grid options.
func (o Options) Validate() error {
	if o.SliceWidth <= 0 || o.SliceHeight <= 0 {
		return errors.Errorf("slice dimensions must be positive, got %dx%d", o.SliceWidth, o.SliceHeight)
	}
	if o.OverlapWidthRatio < 0 || o.OverlapWidthRatio >= 1 {
		return errors.Errorf("overlap width ratio must be in [0, 1), got %v", o.OverlapWidthRatio)
	}
	if o.OverlapHeightRatio < 0 || o.OverlapHeightRatio >= 1 {
		return errors.Errorf("overlap height ratio must be in [0, 1), got %v", o.OverlapHeightRatio)
	}
	return nil
}

// Grid computes the tiles covering an image, in row-major order.
//
// Tiles are placed at successive strides of sliceDim*(1-overlapRatio) along
// each axis. The last tile per axis is shifted backward, not shrunk, so its
// far edge lands exactly on the image boundary. The union of the emitted
// tiles therefore covers the image with no gaps and no partial tiles. An
// image smaller than one slice along an axis yields a single tile spanning
// that axis.
//
// Arguments:
//   - imageWidth: The image width in pixels.
//   - imageHeight: The image height in pixels.
//   - opts: Grid options.
//
// Returns:
//   - []Tile: The covering tiles, row-major, plus the optional full-image
//     tile last.
//   - error: A validation error for non-positive slice dimensions or an
//     overlap ratio outside [0, 1).
func Grid(imageWidth, imageHeight int, opts Options) ([]Tile, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if imageWidth <= 0 || imageHeight <= 0 {
		return nil, errors.Errorf("image dimensions must be positive, got %dx%d", imageWidth, imageHeight)
	}

	xs, tileW := positions(imageWidth, opts.SliceWidth, opts.OverlapWidthRatio)
	ys, tileH := positions(imageHeight, opts.SliceHeight, opts.OverlapHeightRatio)

	tiles := make([]Tile, 0, len(xs)*len(ys)+1)
	for _, y := range ys {
		for _, x := range xs {
			tiles = append(tiles, Tile{X: x, Y: y, Width: tileW, Height: tileH})
		}
	}

	if opts.IncludeFullPass {
		tiles = append(tiles, Tile{X: 0, Y: 0, Width: imageWidth, Height: imageHeight, Full: true})
	}

	return tiles, nil
}

// positions returns the tile origins along one axis and the tile length.
//
// The image edge case dominates: when the image is no larger than one slice
// the single tile spans the whole axis. Otherwise origins advance by the
// stride until a tile would cross the boundary; that tile is placed at
// imageDim-sliceDim instead, keeping its full size.
func positions(imageDim, sliceDim int, overlapRatio float32) ([]int, int) {
	if sliceDim >= imageDim {
		return []int{0}, imageDim
	}

	stride := int(float32(sliceDim) * (1 - overlapRatio))
	if stride < 1 {
		stride = 1
	}

	var origins []int
	for p := 0; ; p += stride {
		if p+sliceDim >= imageDim {
			origins = append(origins, imageDim-sliceDim)
			break
		}
		origins = append(origins, p)
	}
	return origins, sliceDim
}
