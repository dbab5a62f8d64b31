package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/modelship/go-detect/annotations"
)

var csvHeader = []string{
	"image", "class_id", "class_name", "confidence",
	"x_min", "y_min", "x_max", "y_max", "area", "source",
}

// WriteCSV writes a flat spreadsheet view of annotations, one row per
// detection, with a header row.
//
// Arguments:
//   - w: Destination.
//   - imageName: Value of the image column for every row.
//   - anns: Annotations in full-image pixel coordinates.
//
// Returns:
//   - error: A write error.
func WriteCSV(w io.Writer, imageName string, anns []annotations.Annotation) error {
	return WriteCSVDataset(w, []ImageAnnotations{{FileName: imageName, Annotations: anns}})
}

// WriteCSVDataset writes annotations for multiple images into one table with
// a single header row. Rows keep the input image order.
func WriteCSVDataset(w io.Writer, imgs []ImageAnnotations) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "write csv header")
	}

	for _, img := range imgs {
		for _, ann := range img.Annotations {
			record := []string{
				img.FileName,
				strconv.Itoa(ann.ClassID),
				ann.ClassName,
				formatFloat(ann.Confidence),
				formatFloat(ann.Box.X1),
				formatFloat(ann.Box.Y1),
				formatFloat(ann.Box.X2),
				formatFloat(ann.Box.Y2),
				formatFloat(ann.Area),
				string(ann.Source),
			}
			if err := cw.Write(record); err != nil {
				return errors.Wrap(err, "write csv row")
			}
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}
