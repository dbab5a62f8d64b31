// Package onnx - YOLOX detection adapter backed by onnxruntime.
package onnx

import (
	"runtime"
	"strconv"
)

// Config describes the model an adapter loads and how to run it.
type Config struct {
	// ModelPath is the ONNX model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// LibraryPath overrides the onnxruntime shared library location. Empty
	// selects a platform default under third_party/.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// InputWidth, InputHeight is the model input resolution. Defaults to
	// 640x640.
	InputWidth  int `json:"input_width" yaml:"input_width"`
	InputHeight int `json:"input_height" yaml:"input_height"`
	// Classes maps class indices to names. Empty selects CocoClasses.
	// Detections outside the table fall back to the numeric index.
	Classes []string `json:"classes" yaml:"classes"`
	// NMSThreshold suppresses duplicate boxes within one region before the
	// results leave the adapter. The pipeline still merges across regions.
	NMSThreshold float32 `json:"nms_threshold" yaml:"nms_threshold"`
	// IntraOpThreads, InterOpThreads tune onnxruntime graph parallelism.
	// Zero keeps the runtime default.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
}

func (c Config) inputWidth() int {
	if c.InputWidth > 0 {
		return c.InputWidth
	}
	return 640
}

func (c Config) inputHeight() int {
	if c.InputHeight > 0 {
		return c.InputHeight
	}
	return 640
}

func (c Config) nmsThreshold() float32 {
	if c.NMSThreshold > 0 {
		return c.NMSThreshold
	}
	return 0.45
}

// classNames returns the label table, defaulting to the COCO set.
func (c Config) classNames() []string {
	if len(c.Classes) > 0 {
		return c.Classes
	}
	return CocoClasses
}

// className resolves a class index, falling back to the numeric index for
// models shipped without a label table.
func (c Config) className(id int) string {
	names := c.classNames()
	if id >= 0 && id < len(names) {
		return names[id]
	}
	return strconv.Itoa(id)
}

// sharedLibPath returns the platform default onnxruntime shared library.
func sharedLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}
