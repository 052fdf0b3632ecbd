package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"unicode/utf8"

	"github.com/disintegration/imaging"

	"github.com/fruitsalade/volumeviewer/internal/metrics"
)

// DefaultMaxImageSize bounds the longest side of an embedded image preview.
const DefaultMaxImageSize = 2048

// ErrUnsupportedType is set on previews of files with no known category.
var ErrUnsupportedType = errors.New("unsupported file type")

// DecodeError reports text content that is not valid UTF-8.
type DecodeError struct {
	Name   string
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s is not valid UTF-8 text (invalid byte at offset %d)", e.Name, e.Offset)
}

// ImagePreview is an encoded image ready to embed in the page.
type ImagePreview struct {
	ContentType string
	Data        []byte
	Width       int
	Height      int
	Rotated     bool
}

// Preview is the render model for one fetched file. Exactly one of Image or
// Text is set for image, text and html previews; Err is set when the content
// could not be rendered. PDF previews carry neither, the bytes are streamed
// to the browser's viewer separately.
type Preview struct {
	Name     string
	Category Category
	Size     int
	Image    *ImagePreview
	Text     string
	Err      error
}

// Dispatcher turns fetched bytes into a Preview according to the file's
// category.
type Dispatcher struct {
	MaxImageSize int
}

// NewDispatcher creates a Dispatcher with default limits.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{MaxImageSize: DefaultMaxImageSize}
}

// Render classifies name and builds the matching preview from data.
func (d *Dispatcher) Render(name string, data []byte) *Preview {
	p := &Preview{
		Name:     name,
		Category: Classify(name),
		Size:     len(data),
	}

	switch p.Category {
	case CategoryImage:
		p.Image, p.Err = d.renderImage(data)
	case CategoryText, CategoryHTML:
		p.Text, p.Err = decodeText(name, data)
	case CategoryPDF:
	default:
		p.Err = ErrUnsupportedType
	}

	metrics.RecordPreview(string(p.Category), p.Err == nil)
	return p
}

func (d *Dispatcher) renderImage(data []byte) (*ImagePreview, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	orientation := Orientation(bytes.NewReader(data))
	out := applyOrientation(img, orientation)
	rotated := orientation == 3 || orientation == 6 || orientation == 8

	b := out.Bounds()
	oversized := d.MaxImageSize > 0 && (b.Dx() > d.MaxImageSize || b.Dy() > d.MaxImageSize)

	if !rotated && !oversized {
		return &ImagePreview{
			ContentType: "image/" + format,
			Data:        data,
			Width:       b.Dx(),
			Height:      b.Dy(),
		}, nil
	}

	if oversized {
		out = imaging.Fit(out, d.MaxImageSize, d.MaxImageSize, imaging.Lanczos)
	}

	var buf bytes.Buffer
	contentType := "image/jpeg"
	if format == "png" || format == "gif" {
		contentType = "image/png"
		err = imaging.Encode(&buf, out, imaging.PNG)
	} else {
		err = imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(90))
	}
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	ob := out.Bounds()
	return &ImagePreview{
		ContentType: contentType,
		Data:        buf.Bytes(),
		Width:       ob.Dx(),
		Height:      ob.Dy(),
		Rotated:     rotated,
	}, nil
}

func decodeText(name string, data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return "", &DecodeError{Name: name, Offset: i}
		}
		i += size
	}
	return "", &DecodeError{Name: name}
}
