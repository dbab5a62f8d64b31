package pipeline

import (
	"github.com/modelship/go-detect/annotations"
	"github.com/modelship/go-detect/detect"
	"github.com/modelship/go-detect/slicing"
)

// mapDetection converts a tile-local detection into an image-space
// annotation: offset by the tile origin, clipped to the image bounds.
//
// Detections whose clipped box has no area are dropped (ok == false). Class
// and confidence pass through unchanged.
func mapDetection(d detect.RawDetection, tile slicing.Tile, imageWidth, imageHeight int) (annotations.Annotation, bool) {
	box := d.Box.
		Offset(float32(tile.X), float32(tile.Y)).
		Clip(float32(imageWidth), float32(imageHeight))
	if box.Empty() {
		return annotations.Annotation{}, false
	}

	source := annotations.SourceTile
	if tile.Full {
		source = annotations.SourceFull
	}

	return annotations.Annotation{
		ClassID:    d.ClassID,
		ClassName:  d.ClassName,
		Confidence: d.Confidence,
		Box:        box,
		Area:       box.Area(),
		Source:     source,
	}, true
}
