package export

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/modelship/go-detect/annotations"
)

// COCOImage is one entry of the dataset's image table.
type COCOImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// COCOAnnotation is one object instance. The box uses COCO's
// [x, y, width, height] convention.
type COCOAnnotation struct {
	ID         int        `json:"id"`
	ImageID    int        `json:"image_id"`
	CategoryID int        `json:"category_id"`
	BBox       [4]float32 `json:"bbox"`
	Area       float32    `json:"area"`
	Score      float32    `json:"score"`
	IsCrowd    int        `json:"iscrowd"`
}

// COCOCategory names one class.
type COCOCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// COCODataset is the top-level COCO detection JSON document.
type COCODataset struct {
	Images      []COCOImage      `json:"images"`
	Annotations []COCOAnnotation `json:"annotations"`
	Categories  []COCOCategory   `json:"categories"`
}

// ImageAnnotations pairs one image with its annotations for export.
type ImageAnnotations struct {
	FileName    string
	Width       int
	Height      int
	Annotations []annotations.Annotation
}

// NewCOCODataset assembles a COCO document from per-image annotation sets.
//
// Image and annotation IDs are assigned sequentially from 1 in input order.
// Category IDs follow COCO convention (class ID + 1) and the table lists
// only classes that actually occur, sorted by ID.
func NewCOCODataset(imgs []ImageAnnotations) COCODataset {
	ds := COCODataset{
		Images:      make([]COCOImage, 0, len(imgs)),
		Annotations: []COCOAnnotation{},
	}

	seen := map[int]string{}
	annID := 1
	for i, img := range imgs {
		imageID := i + 1
		ds.Images = append(ds.Images, COCOImage{
			ID:       imageID,
			FileName: img.FileName,
			Width:    img.Width,
			Height:   img.Height,
		})
		for _, ann := range img.Annotations {
			seen[ann.ClassID] = ann.ClassName
			ds.Annotations = append(ds.Annotations, COCOAnnotation{
				ID:         annID,
				ImageID:    imageID,
				CategoryID: ann.ClassID + 1,
				BBox:       [4]float32{ann.Box.X1, ann.Box.Y1, ann.Box.Width(), ann.Box.Height()},
				Area:       ann.Area,
				Score:      ann.Confidence,
			})
			annID++
		}
	}

	classIDs := make([]int, 0, len(seen))
	for id := range seen {
		classIDs = append(classIDs, id)
	}
	sort.Ints(classIDs)
	for _, id := range classIDs {
		ds.Categories = append(ds.Categories, COCOCategory{ID: id + 1, Name: seen[id]})
	}
	return ds
}

// WriteCOCO serializes a COCO dataset as indented JSON.
func WriteCOCO(w io.Writer, ds COCODataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ds); err != nil {
		return errors.Wrap(err, "encode coco dataset")
	}
	return nil
}
