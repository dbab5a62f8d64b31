package preview

import (
	"fmt"
	stdimage "image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/modelship/go-detect/annotations"
)

// Options control how annotations are drawn.
type Options struct {
	// BoxThickness is the outline width in pixels.
	BoxThickness int
	// TextScale is the label font scale.
	TextScale float64
	// ShowLabels draws the class name above each box.
	ShowLabels bool
	// ShowConfidence appends the score to the label.
	ShowConfidence bool
	// MinConfidence hides annotations scoring below it.
	MinConfidence float32
}

// DefaultOptions returns the stock preview style.
func DefaultOptions() Options {
	return Options{
		BoxThickness:   2,
		TextScale:      0.5,
		ShowLabels:     true,
		ShowConfidence: true,
	}
}

// Render draws annotation boxes and labels onto a copy of the image.
//
// Each class gets a stable color derived from its name. The input image is
// not modified.
//
// Arguments:
//   - src: The image the annotations belong to.
//   - anns: Annotations in full-image pixel coordinates.
//   - opts: Drawing style.
//
// Returns:
//   - image.Image: The annotated copy.
//   - error: A conversion failure.
func Render(src stdimage.Image, anns []annotations.Annotation, opts Options) (stdimage.Image, error) {
	if src == nil {
		return nil, errors.New("nil source image")
	}
	if opts.BoxThickness <= 0 {
		opts.BoxThickness = 2
	}
	if opts.TextScale <= 0 {
		opts.TextScale = 0.5
	}

	mat, err := gocv.ImageToMatRGBA(src)
	if err != nil {
		return nil, errors.Wrap(err, "convert image to mat")
	}
	defer mat.Close()

	for _, ann := range anns {
		if ann.Confidence < opts.MinConfidence {
			continue
		}

		col := classColor(ann.ClassName)
		box := stdimage.Rect(
			int(ann.Box.X1), int(ann.Box.Y1),
			int(ann.Box.X2), int(ann.Box.Y2),
		)
		gocv.Rectangle(&mat, box, col, opts.BoxThickness)

		if !opts.ShowLabels {
			continue
		}
		label := ann.ClassName
		if opts.ShowConfidence {
			label = fmt.Sprintf("%s %.2f", ann.ClassName, ann.Confidence)
		}

		size := gocv.GetTextSize(label, gocv.FontHersheySimplex, opts.TextScale, 1)
		textOrigin := stdimage.Pt(box.Min.X, box.Min.Y-4)
		background := stdimage.Rect(
			box.Min.X, box.Min.Y-size.Y-8,
			box.Min.X+size.X+4, box.Min.Y,
		)
		if background.Min.Y < 0 {
			// Label would leave the frame; draw inside the box instead.
			background = stdimage.Rect(box.Min.X, box.Min.Y, box.Min.X+size.X+4, box.Min.Y+size.Y+8)
			textOrigin = stdimage.Pt(box.Min.X, box.Min.Y+size.Y+4)
		}
		gocv.Rectangle(&mat, background, col, -1)
		gocv.PutText(&mat, label, textOrigin, gocv.FontHersheySimplex, opts.TextScale,
			labelTextColor(), 1)
	}

	out, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "convert mat to image")
	}
	return out, nil
}
