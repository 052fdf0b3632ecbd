package preview

import (
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation reads the EXIF orientation tag from r. It returns 0 when the
// metadata is missing, unreadable, or holds no orientation.
func Orientation(r io.Reader) (orientation int) {
	// goexif can panic on truncated tag tables.
	defer func() {
		if recover() != nil {
			orientation = 0
		}
	}()

	x, err := exif.Decode(r)
	if err != nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return v
}

// Orient applies the EXIF orientation found in meta (the original encoded
// image) to img. Only rotations are corrected; every other value, and any
// failure reading the metadata, leaves img untouched.
func Orient(img image.Image, meta io.Reader) image.Image {
	return applyOrientation(img, Orientation(meta))
}

// applyOrientation rotates img counter-clockwise according to orientation.
// The canvas grows to fit, so 90 and 270 degree turns swap width and height.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 3:
		return imaging.Rotate180(img)
	case 6:
		return imaging.Rotate270(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
