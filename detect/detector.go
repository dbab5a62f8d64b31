// Package detect - The detector boundary consumed by the slicing pipeline.
//
// The pipeline treats the detector as a capability: it hands over a pixel
// region and receives class/box/confidence triples back. Model weights,
// runtimes and architectures stay behind this interface.
package detect

import (
	"context"
	"image"

	imgs "github.com/modelship/go-detect/images"
)

// RawDetection is one detection in tile-local pixel coordinates, as returned
// by a detector before the pipeline remaps it into image space.
type RawDetection struct {
	// ClassID is the model's class index, >= 0.
	ClassID int
	// ClassName is the human-readable class label.
	ClassName string
	// Confidence is the detection score in [0, 1].
	Confidence float32
	// Box is the bounding box, local to the region the detector was given.
	Box imgs.Rect
}

// Detector runs object detection over a single pixel region.
//
// A failed call is recorded as a per-tile failure by the pipeline; it never
// aborts the whole run. The pipeline invokes Detect concurrently for
// independent tiles only when Reentrant reports true, and serializes calls
// otherwise.
type Detector interface {
	// Detect returns the objects found in the region with confidence at or
	// above threshold. Implementations should honor ctx cancellation and
	// deadlines where their runtime allows it.
	Detect(ctx context.Context, region image.Image, threshold float32) ([]RawDetection, error)

	// Reentrant reports whether Detect may be called concurrently.
	Reentrant() bool
}
