// Package preview - Annotated preview rendering for labeled images.
package preview

import (
	"hash/fnv"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// classColor derives a stable, saturated color for a class name. The hue
// comes from a hash of the name, so a class keeps its color across runs and
// images without any shared registry.
func classColor(className string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(className))
	hue := float64(h.Sum32() % 360)

	c := colorful.Hsv(hue, 0.85, 0.95)
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// labelTextColor is the text color drawn over label backgrounds.
func labelTextColor() color.RGBA {
	return color.RGBA{R: 255, G: 255, B: 255, A: 255}
}
