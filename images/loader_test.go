package images

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	require.NoError(t, imaging.Save(img, path))
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")
	writeTestPNG(t, path, 32, 24)

	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Width)
	assert.Equal(t, 24, img.Height)
	assert.NotNil(t, img.Pixels)

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadImage(filepath.Join(dir, "absent.png"))
		assert.Error(t, err)
	})

	t.Run("not an image", func(t *testing.T) {
		bad := filepath.Join(dir, "notes.png")
		require.NoError(t, os.WriteFile(bad, []byte("not pixels"), 0o644))
		_, err := LoadImage(bad)
		assert.Error(t, err)
	})
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "b.png"), 16, 16)
	writeTestPNG(t, filepath.Join(dir, "a.png"), 8, 8)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "labels.txt"), []byte("skip me"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	files, err := LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)

	// Name order, non-images and subdirectories skipped.
	assert.Equal(t, filepath.Join(dir, "a.png"), files[0].Path)
	assert.Equal(t, 8, files[0].Image.Width)
	assert.Equal(t, filepath.Join(dir, "b.png"), files[1].Path)
	assert.Equal(t, 16, files[1].Image.Width)

	t.Run("missing directory", func(t *testing.T) {
		_, err := LoadDirectory(filepath.Join(dir, "absent"))
		assert.Error(t, err)
	})
}
