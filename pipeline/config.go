// Package pipeline - Orchestration of sliced detection runs.
package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the knobs of one pipeline. A zero MaxConcurrency means the
// available hardware parallelism; concurrency is never unbounded, to protect
// shared detector resources such as GPU or ONNX runtime sessions.
type Config struct {
	// SliceWidth, SliceHeight is the tile size in pixels.
	SliceWidth  int `json:"slice_width" yaml:"slice_width"`
	SliceHeight int `json:"slice_height" yaml:"slice_height"`
	// OverlapWidthRatio, OverlapHeightRatio is the fraction of the slice
	// dimension shared by adjacent tiles, in [0, 1).
	OverlapWidthRatio  float32 `json:"overlap_width_ratio" yaml:"overlap_width_ratio"`
	OverlapHeightRatio float32 `json:"overlap_height_ratio" yaml:"overlap_height_ratio"`
	// ConfidenceThreshold drops detections scoring below it before the merge.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// NMSThreshold is the IoU above which same-class duplicates are merged.
	NMSThreshold float32 `json:"nms_threshold" yaml:"nms_threshold"`
	// IncludeFullPass adds one detection pass over the unsliced image to
	// catch objects larger than a single tile.
	IncludeFullPass bool `json:"include_full_pass" yaml:"include_full_pass"`
	// MaxConcurrency bounds the tile worker pool. Zero means GOMAXPROCS.
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency"`
	// TileTimeout, when positive, bounds each detector call. A timed-out
	// tile is recorded as failed, not retried.
	TileTimeout time.Duration `json:"tile_timeout" yaml:"tile_timeout"`
}

// DefaultConfig returns the stock slicing configuration: 512x512 tiles with
// 20% overlap, confidence 0.3, merge IoU 0.45.
func DefaultConfig() Config {
	return Config{
		SliceWidth:          512,
		SliceHeight:         512,
		OverlapWidthRatio:   0.2,
		OverlapHeightRatio:  0.2,
		ConfidenceThreshold: 0.3,
		NMSThreshold:        0.45,
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
//
// Arguments:
//   - path: The YAML file to read.
//
// Returns:
//   - Config: The merged, validated configuration.
//   - error: A read, parse, or validation error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field, returning a ConfigError naming the first
// offending one.
func (c Config) Validate() error {
	switch {
	case c.SliceWidth <= 0:
		return &ConfigError{Field: "slice_width", Reason: fmt.Sprintf("must be positive, got %d", c.SliceWidth)}
	case c.SliceHeight <= 0:
		return &ConfigError{Field: "slice_height", Reason: fmt.Sprintf("must be positive, got %d", c.SliceHeight)}
	case c.OverlapWidthRatio < 0 || c.OverlapWidthRatio >= 1:
		return &ConfigError{Field: "overlap_width_ratio", Reason: fmt.Sprintf("must be in [0, 1), got %v", c.OverlapWidthRatio)}
	case c.OverlapHeightRatio < 0 || c.OverlapHeightRatio >= 1:
		return &ConfigError{Field: "overlap_height_ratio", Reason: fmt.Sprintf("must be in [0, 1), got %v", c.OverlapHeightRatio)}
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1:
		return &ConfigError{Field: "confidence_threshold", Reason: fmt.Sprintf("must be in [0, 1], got %v", c.ConfidenceThreshold)}
	case c.NMSThreshold < 0 || c.NMSThreshold > 1:
		return &ConfigError{Field: "nms_threshold", Reason: fmt.Sprintf("must be in [0, 1], got %v", c.NMSThreshold)}
	case c.MaxConcurrency < 0:
		return &ConfigError{Field: "max_concurrency", Reason: fmt.Sprintf("must be >= 0, got %d", c.MaxConcurrency)}
	case c.TileTimeout < 0:
		return &ConfigError{Field: "tile_timeout", Reason: fmt.Sprintf("must be >= 0, got %v", c.TileTimeout)}
	}
	return nil
}
