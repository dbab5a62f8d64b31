package pipeline

import (
	"fmt"

	"github.com/modelship/go-detect/slicing"
)

// ConfigError reports an invalid configuration field. It is fatal and aborts
// a run before any tile work begins.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// TileFailure records one tile whose detector call failed or timed out. The
// run continues without its detections; callers inspect the failure list to
// distinguish "no objects found" from "some tiles failed".
type TileFailure struct {
	// Tile identifies the failed region by its origin and extent.
	Tile slicing.Tile
	// Err is the underlying detector or crop error.
	Err error
}

func (f TileFailure) Error() string {
	return fmt.Sprintf("tile (%d, %d) %dx%d: %v", f.Tile.X, f.Tile.Y, f.Tile.Width, f.Tile.Height, f.Err)
}

// Unwrap exposes the underlying error for errors.Is/As checks.
func (f TileFailure) Unwrap() error {
	return f.Err
}
