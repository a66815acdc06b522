// Package images normalizes uploaded profile pictures into a single
// canonical representation: a 512x512 JPEG.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"

	// Register decoders beyond JPEG/PNG so uploads in the accepted
	// extension set can actually be decoded.
	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// Dimension is the side length of the stored square picture.
	Dimension = 512
	// JPEGQuality is the fixed encode quality for stored pictures.
	JPEGQuality = 85
)

// ErrUnsupportedImage reports input that could not be decoded as an image.
// HEIC/HEIF uploads land here: the extension is accepted but no decoder is
// registered for the format.
var ErrUnsupportedImage = errors.New("unsupported or corrupt image data")

// NormalizeProfilePicture decodes the uploaded bytes, corrects EXIF
// orientation, center-crops to a square of Dimension pixels, and re-encodes
// as JPEG. All failures are reported as errors rather than panics so a bad
// upload stays a client problem.
func NormalizeProfilePicture(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	// Fill crops to the center and resizes, normalizing color mode to NRGBA
	// in the process.
	square := imaging.Fill(img, Dimension, Dimension, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, square, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode profile picture: %w", err)
	}

	return buf.Bytes(), nil
}
