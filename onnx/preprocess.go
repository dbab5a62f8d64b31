package onnx

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// fillInput writes a region into a NCHW float32 tensor buffer.
//
// The region is resized to the model input resolution with Lanczos3 and each
// channel normalized to [0, 1], matching how the model was exported.
//
// Arguments:
//   - region: The pixels to infer over.
//   - data: The destination tensor buffer, at least 3*width*height floats.
//   - width, height: The model input resolution.
//
// Returns:
//   - error: An error when the buffer is too small for the input shape.
func fillInput(region image.Image, data []float32, width, height int) error {
	channelSize := width * height
	if len(data) < channelSize*3 {
		return errors.Errorf("tensor buffer holds %d floats, input %dx%d needs %d",
			len(data), width, height, channelSize*3)
	}
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	scaled := region
	bounds := region.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		scaled = resize.Resize(uint(width), uint(height), region, resize.Lanczos3)
	}

	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := scaled.At(scaled.Bounds().Min.X+x, scaled.Bounds().Min.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}
