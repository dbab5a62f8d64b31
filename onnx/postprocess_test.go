package onnx

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelship/go-detect/detect"
	"github.com/modelship/go-detect/images"
)

// row builds one YOLOX output row: center-size box, objectness, class scores.
func row(cx, cy, w, h, obj float32, classScores ...float32) []float32 {
	return append([]float32{cx, cy, w, h, obj}, classScores...)
}

func TestDecodeOutput(t *testing.T) {
	params := decodeParams{
		classes:      3,
		inputWidth:   640,
		inputHeight:  640,
		regionWidth:  320,
		regionHeight: 320,
		threshold:    0.5,
		className:    func(id int) string { return []string{"person", "car", "dog"}[id] },
	}

	var data []float32
	// Confident car at input center: score 0.9*0.9 = 0.81.
	data = append(data, row(320, 320, 100, 60, 0.9, 0.1, 0.9, 0.2)...)
	// Weak detection filtered by threshold: 0.6*0.5 = 0.3.
	data = append(data, row(100, 100, 40, 40, 0.6, 0.5, 0.1, 0.1)...)
	// Degenerate box dropped after clipping.
	data = append(data, row(-200, -200, 20, 20, 0.95, 0.9, 0.1, 0.1)...)

	dets := decodeOutput(data, params)
	require.Len(t, dets, 1)

	// Scaled by 0.5 back to the 320x320 region.
	det := dets[0]
	assert.Equal(t, 1, det.ClassID)
	assert.Equal(t, "car", det.ClassName)
	assert.InDelta(t, 0.81, float64(det.Confidence), 1e-4)
	assert.InDelta(t, 135, float64(det.Box.X1), 0.01)
	assert.InDelta(t, 145, float64(det.Box.Y1), 0.01)
	assert.InDelta(t, 185, float64(det.Box.X2), 0.01)
	assert.InDelta(t, 175, float64(det.Box.Y2), 0.01)
}

func TestDecodeOutputEmpty(t *testing.T) {
	assert.Nil(t, decodeOutput(nil, decodeParams{classes: 3}))
	assert.Nil(t, decodeOutput([]float32{1, 2, 3}, decodeParams{classes: 3}))
}

func TestSuppress(t *testing.T) {
	dets := []detect.RawDetection{
		{ClassID: 1, Confidence: 0.7, Box: images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 95}},
		{ClassID: 1, Confidence: 0.9, Box: images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}},
		// Same position, different class: survives class-aware suppression.
		{ClassID: 2, Confidence: 0.6, Box: images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}},
	}

	kept := suppress(dets, 0.45)
	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].Confidence)
	assert.Equal(t, 2, kept[1].ClassID)
}

func TestFillInput(t *testing.T) {
	// Solid mid-gray region; every normalized channel value is identical.
	region := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			region.Pix[y*region.Stride+x*4+0] = 128
			region.Pix[y*region.Stride+x*4+1] = 128
			region.Pix[y*region.Stride+x*4+2] = 128
			region.Pix[y*region.Stride+x*4+3] = 255
		}
	}

	data := make([]float32, 3*64*64)
	require.NoError(t, fillInput(region, data, 64, 64))
	for i, v := range data {
		assert.InDelta(t, 128.0/255.0, float64(v), 1e-6, "index %d", i)
	}
}

func TestFillInputBufferTooSmall(t *testing.T) {
	region := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	err := fillInput(region, make([]float32, 10), 64, 64)
	assert.Error(t, err)
}

func TestNumPredictions(t *testing.T) {
	// 640x640 across strides 8/16/32: 6400 + 1600 + 400.
	assert.Equal(t, 8400, numPredictions(640, 640))
}
