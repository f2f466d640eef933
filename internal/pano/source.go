package pano

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"

	// Native decoders plus the extended codec set. The source loader
	// accepts anything image.Decode can sniff.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/panoflat/panoflat/internal/logger"
)

// ErrInvalidAspectRatio is returned when the input is not a 2:1
// equirectangular image. The aspect is never corrected; anything else
// would silently distort the projection.
var ErrInvalidAspectRatio = errors.New("source is not a 2:1 equirectangular image")

// Source is the decoded equirectangular input. It is normalized to RGBA
// once at load time and never written afterwards, so a single Source is
// safe to share across any number of workers without locking.
type Source struct {
	pix    *image.RGBA
	width  int
	height int
}

// NewSource wraps an already-decoded image, normalizing it to RGBA and
// enforcing the equirectangular aspect invariant. Callers that decode
// their own frames (e.g. from a video pipeline) enter here.
func NewSource(img image.Image) (*Source, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("source has empty bounds %v", bounds)
	}
	if w != 2*h {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidAspectRatio, w, h)
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	return &Source{pix: rgba, width: w, height: h}, nil
}

// LoadSource reads and decodes an equirectangular image from disk
func LoadSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode source image: %w", err)
	}

	src, err := NewSource(img)
	if err != nil {
		return nil, err
	}

	logger.WithComponent("source").Info().
		Str("path", path).
		Str("format", format).
		Int("width", src.width).
		Int("height", src.height).
		Msg("Source image loaded")

	return src, nil
}

// Width returns the source width in pixels
func (s *Source) Width() int {
	return s.width
}

// Height returns the source height in pixels
func (s *Source) Height() int {
	return s.height
}

// at returns the pixel at integer coordinates. x must already be wrapped
// into [0, width) and y clamped into [0, height).
func (s *Source) at(x, y int) (r, g, b, a uint8) {
	i := y*s.pix.Stride + x*4
	p := s.pix.Pix[i : i+4 : i+4]
	return p[0], p[1], p[2], p[3]
}
