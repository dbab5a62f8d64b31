// Package annotations - The durable output schema of the detection pipeline.
package annotations

import (
	"fmt"
	"sort"

	"github.com/modelship/go-detect/images"
)

// Source identifies which detection pass produced an annotation.
type Source string

const (
	// SourceTile marks detections from a sliced tile pass.
	SourceTile Source = "tile"
	// SourceFull marks detections from the whole-image pass.
	SourceFull Source = "full"
)

// Annotation is one detected object in full-image pixel coordinates.
//
// Boxes use the corner convention (x_min, y_min, x_max, y_max) so downstream
// exporters can losslessly convert to any bounding-box format. Ownership
// passes to the caller once a pipeline run returns.
type Annotation struct {
	// ClassID is the model's class index, >= 0.
	ClassID int `json:"class_id" yaml:"class_id"`
	// ClassName is the human-readable class label.
	ClassName string `json:"class_name" yaml:"class_name"`
	// Confidence is the detection score in [0, 1].
	Confidence float32 `json:"confidence" yaml:"confidence"`
	// Box is the bounding box in full-image pixel coordinates.
	Box images.Rect `json:"box" yaml:"box"`
	// Area is the box area in pixels, always positive.
	Area float32 `json:"area" yaml:"area"`
	// Source tags the pass that produced the detection.
	Source Source `json:"source" yaml:"source"`
}

func (a Annotation) String() string {
	return fmt.Sprintf("%s (%.2f) %s", a.ClassName, a.Confidence, a.Box)
}

// SortCanonical orders annotations by class ID ascending, then confidence
// descending, then area descending. This is the pipeline's output order.
func SortCanonical(anns []Annotation) {
	sort.SliceStable(anns, func(i, j int) bool {
		if anns[i].ClassID != anns[j].ClassID {
			return anns[i].ClassID < anns[j].ClassID
		}
		if anns[i].Confidence != anns[j].Confidence {
			return anns[i].Confidence > anns[j].Confidence
		}
		return anns[i].Area > anns[j].Area
	})
}
