// Package images - Image and bounding box primitives shared across the pipeline.
package images

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Rect is a bounding box in corner-coordinate form.
//
// Coordinates are pixels with X2/Y2 exclusive. They are float32 because
// detector outputs carry sub-pixel precision after being scaled back from the
// model input resolution.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Width returns the horizontal extent of the box.
func (r Rect) Width() float32 { return r.X2 - r.X1 }

// Height returns the vertical extent of the box.
func (r Rect) Height() float32 { return r.Y2 - r.Y1 }

// Area returns the pixel area of the box. Degenerate boxes report zero.
func (r Rect) Area() float32 {
	w := r.Width()
	h := r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Empty reports whether the box has no positive area.
func (r Rect) Empty() bool {
	return r.X2 <= r.X1 || r.Y2 <= r.Y1
}

// Offset returns the box translated by (dx, dy).
func (r Rect) Offset(dx, dy float32) Rect {
	return Rect{X1: r.X1 + dx, Y1: r.Y1 + dy, X2: r.X2 + dx, Y2: r.Y2 + dy}
}

// Clip constrains the box to [0, width] x [0, height]. A box entirely outside
// the bounds clips to an empty box on the nearest edge.
func (r Rect) Clip(width, height float32) Rect {
	return Rect{
		X1: math32.Min(math32.Max(r.X1, 0), width),
		Y1: math32.Min(math32.Max(r.Y1, 0), height),
		X2: math32.Min(math32.Max(r.X2, 0), width),
		Y2: math32.Min(math32.Max(r.Y2, 0), height),
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.1f, %.1f)-(%.1f, %.1f)", r.X1, r.Y1, r.X2, r.Y2)
}

// Intersection returns the overlapping area of two boxes, or zero when they
// do not overlap.
func Intersection(a, b Rect) float32 {
	ix1 := math32.Max(a.X1, b.X1)
	iy1 := math32.Max(a.Y1, b.Y1)
	ix2 := math32.Min(a.X2, b.X2)
	iy2 := math32.Min(a.Y2, b.Y2)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	return iw * ih
}

// Union returns the total area covered by two boxes, counting the overlap
// once.
func Union(a, b Rect) float32 {
	return a.Area() + b.Area() - Intersection(a, b)
}

// CalculateIoU returns the Intersection-over-Union of two boxes.
//
// IoU is the standard measure of box similarity used to decide whether two
// detections describe the same object: the ratio of the overlapping area to
// the total area covered by both boxes (inclusion-exclusion, so the overlap
// is not counted twice).
//
// Arguments:
//   - a: The first box.
//   - b: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 (disjoint) and 1.0 (identical).
func CalculateIoU(a, b Rect) float32 {
	inter := Intersection(a, b)
	if inter <= 0 {
		return 0
	}
	union := Union(a, b)
	if union <= 0 {
		return 0
	}
	return inter / union
}
