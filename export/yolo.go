// Package export - Serialization of annotations into dataset interchange
// formats (YOLO, COCO, CSV).
//
// Exporters consume the pipeline's corner-coordinate annotations and convert
// to each format's own box convention; nothing here feeds back into
// detection.
package export

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/modelship/go-detect/annotations"
)

// WriteYOLO writes one annotation per line in YOLO label format:
// "class_id x_center y_center width height", all coordinates normalized to
// [0, 1] by the image dimensions.
//
// Arguments:
//   - w: Destination, typically the image's .txt label file.
//   - anns: Annotations in full-image pixel coordinates.
//   - imageWidth, imageHeight: The image dimensions used to normalize.
//
// Returns:
//   - error: A write error, or invalid image dimensions.
func WriteYOLO(w io.Writer, anns []annotations.Annotation, imageWidth, imageHeight int) error {
	if imageWidth <= 0 || imageHeight <= 0 {
		return errors.Errorf("image dimensions must be positive, got %dx%d", imageWidth, imageHeight)
	}

	fw := float32(imageWidth)
	fh := float32(imageHeight)
	for _, ann := range anns {
		cx := (ann.Box.X1 + ann.Box.X2) / 2 / fw
		cy := (ann.Box.Y1 + ann.Box.Y2) / 2 / fh
		bw := ann.Box.Width() / fw
		bh := ann.Box.Height() / fh
		if _, err := fmt.Fprintf(w, "%d %.6f %.6f %.6f %.6f\n", ann.ClassID, cx, cy, bw, bh); err != nil {
			return errors.Wrap(err, "write yolo label")
		}
	}
	return nil
}
