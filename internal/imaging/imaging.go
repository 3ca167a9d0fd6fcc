// Package imaging normalizes uploaded book cover images.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// Cover bounds. Covers are portrait, so height gets the larger limit.
const (
	MaxCoverWidth  = 600
	MaxCoverHeight = 900
)

// MaxUploadBytes caps the size of an uploaded cover before decoding.
const MaxUploadBytes = 8 << 20

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// ErrUnsupported is returned for uploads that are not an accepted image type.
var ErrUnsupported = errors.New("unsupported image format")

// ErrTooLarge is returned for uploads over MaxUploadBytes.
var ErrTooLarge = errors.New("image too large")

var decoders = map[string]func(io.Reader) (image.Image, error){
	"image/jpeg": jpeg.Decode,
	"image/png":  png.Decode,
	"image/gif":  gif.Decode,
	"image/webp": webp.Decode,
}

// Cover is a processed cover image, always JPEG.
type Cover struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// ProcessCover reads an uploaded image, checks its type by sniffing the
// bytes, fits it into MaxCoverWidth x MaxCoverHeight and re-encodes it as JPEG.
func ProcessCover(r io.Reader) (*Cover, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}

	// Client supplied content types are not trusted.
	detected := http.DetectContentType(data)
	decode, ok := decoders[detected]
	if !ok {
		return nil, fmt.Errorf("%w: %s (JPEG, PNG, GIF or WebP accepted)", ErrUnsupported, detected)
	}

	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = fit(img, MaxCoverWidth, MaxCoverHeight)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &Cover{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// fit scales img down, preserving aspect ratio, so it fits in maxW x maxH.
// Images already inside the box are returned unchanged.
func fit(img image.Image, maxW, maxH int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	var newW, newH int
	if w*maxH > h*maxW {
		newW, newH = maxW, h*maxW/w
	} else {
		newW, newH = w*maxH/h, maxH
	}
	newW, newH = max(1, newW), max(1, newH)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
