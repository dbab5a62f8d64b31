package images

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ImageFile pairs a decoded image with the file it came from.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Image is the decoded, validated image.
	Image Image
}

// LoadImage reads and decodes a single image file.
//
// Arguments:
//   - path: Path to a JPEG, PNG, BMP, TIFF or GIF file.
//
// Returns:
//   - Image: The decoded, validated image.
//   - error: A read, decode or validation failure.
func LoadImage(path string) (Image, error) {
	pixels, err := imaging.Open(path)
	if err != nil {
		return Image{}, errors.Wrapf(err, "open image %s", path)
	}
	return NewImage(pixels)
}

// LoadDirectory decodes every supported image file in a directory, sorted by
// file name. Subdirectories and non-image files are skipped.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: The decoded images in name order.
//   - error: A read, decode or validation failure.
func LoadDirectory(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".gif":
		default:
			continue
		}

		path := filepath.Join(dir, entry.Name())
		img, err := LoadImage(path)
		if err != nil {
			return nil, err
		}
		files = append(files, ImageFile{Path: path, Image: img})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}
