package onnx

import (
	"sort"

	"github.com/modelship/go-detect/detect"
	"github.com/modelship/go-detect/images"
)

// decodeParams carries everything decodeOutput needs to turn a raw output
// tensor into region-local detections.
type decodeParams struct {
	classes      int
	inputWidth   int
	inputHeight  int
	regionWidth  int
	regionHeight int
	threshold    float32
	className    func(int) string
}

// decodeOutput converts the YOLOX head output into detections.
//
// Each row is [cx, cy, w, h, objectness, class scores...] in model input
// coordinates. The final score of a row is objectness times its best class
// score; rows below threshold are dropped. Center-size boxes convert to
// corner form and scale back to the region's resolution.
func decodeOutput(data []float32, p decodeParams) []detect.RawDetection {
	rowLen := 5 + p.classes
	if rowLen <= 5 || len(data) < rowLen {
		return nil
	}

	scaleX := float32(p.regionWidth) / float32(p.inputWidth)
	scaleY := float32(p.regionHeight) / float32(p.inputHeight)

	var dets []detect.RawDetection
	for offset := 0; offset+rowLen <= len(data); offset += rowLen {
		row := data[offset : offset+rowLen]

		objectness := row[4]
		classID := 0
		best := row[5]
		for c := 1; c < p.classes; c++ {
			if row[5+c] > best {
				best = row[5+c]
				classID = c
			}
		}

		score := objectness * best
		if score < p.threshold {
			continue
		}

		cx, cy, w, h := row[0], row[1], row[2], row[3]
		box := images.Rect{
			X1: (cx - w/2) * scaleX,
			Y1: (cy - h/2) * scaleY,
			X2: (cx + w/2) * scaleX,
			Y2: (cy + h/2) * scaleY,
		}.Clip(float32(p.regionWidth), float32(p.regionHeight))
		if box.Empty() {
			continue
		}

		name := ""
		if p.className != nil {
			name = p.className(classID)
		}
		dets = append(dets, detect.RawDetection{
			ClassID:    classID,
			ClassName:  name,
			Confidence: score,
			Box:        box,
		})
	}
	return dets
}

// suppress removes near-duplicate boxes of the same class within one region.
// Cross-region duplicates are the merge step's job; this only keeps one box
// where the model fired on the same object from multiple grid cells.
func suppress(dets []detect.RawDetection, iouThreshold float32) []detect.RawDetection {
	n := len(dets)
	if n == 0 {
		return nil
	}

	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})

	used := make([]bool, n)
	kept := make([]detect.RawDetection, 0, n)
	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}
		kept = append(kept, dets[i])
		used[i] = true
		for j := i + 1; j < n; j++ {
			if used[j] || dets[i].ClassID != dets[j].ClassID {
				continue
			}
			if images.CalculateIoU(dets[i].Box, dets[j].Box) > iouThreshold {
				used[j] = true
			}
		}
	}
	return kept
}
