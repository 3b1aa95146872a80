package avatar

import (
	"bytes"
	"image"
	"image/png"
	"math"

	// Registered decoders for the formats image providers return
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/webp"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/image/draw"
)

// Dimensional contract of the Slack profile photo API
const (
	MinX = 512
	MinY = 512
	MaxX = 1024
	MaxY = 1024

	// MaxSourcePixels bounds the declared size of a source image before it is decoded
	MaxSourcePixels = 40_000_000
)

var (
	ErrInvalidImage   = goerr.New("invalid image")
	ErrEncodingFailed = goerr.New("image encoding failed")
)

// Crop is the square area the destination should keep, in pixels of the normalized image
type Crop struct {
	X    int
	Y    int
	Side int
}

// Normalized is a PNG that satisfies the dimensional contract plus its crop descriptor.
// The pixel data itself is not cropped.
type Normalized struct {
	PNG    []byte
	Width  int
	Height int
	Crop   Crop
}

type normalizeConfig struct {
	legacyDownscale bool
}

type NormalizeOption func(*normalizeConfig)

// WithLegacyDownscale uses max(MaxX/w, MaxY/h) when shrinking. With extreme aspect ratios the
// longer edge can stay above the maximum; 2048x1024 is not resized at all.
func WithLegacyDownscale() NormalizeOption {
	return func(c *normalizeConfig) {
		c.legacyDownscale = true
	}
}

// Normalize decodes raw, scales it into [MinX..MaxX]x[MinY..MaxY] and re-encodes it as PNG.
func Normalize(raw []byte, opts ...NormalizeOption) (*Normalized, error) {
	var cfg normalizeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	decl, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidImage, "failed to read image header",
			goerr.V("size", len(raw)),
			goerr.V("cause", err.Error()))
	}
	if decl.Width <= 0 || decl.Height <= 0 || int64(decl.Width)*int64(decl.Height) > MaxSourcePixels {
		return nil, goerr.Wrap(ErrInvalidImage, "declared image size is out of range",
			goerr.V("format", format),
			goerr.V("width", decl.Width),
			goerr.V("height", decl.Height))
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidImage, "failed to decode image",
			goerr.V("size", len(raw)),
			goerr.V("cause", err.Error()))
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, goerr.Wrap(ErrInvalidImage, "image has no pixels", goerr.V("format", format))
	}

	img := src
	if scale := scaleFactor(w, h, cfg.legacyDownscale); scale != 1 {
		nw := int(math.Round(float64(w) * scale))
		nh := int(math.Round(float64(h) * scale))
		dst := image.NewRGBA(image.Rect(0, 0, max(nw, 1), max(nh, 1)))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, goerr.Wrap(ErrEncodingFailed, "failed to encode png",
			goerr.V("format", format),
			goerr.V("cause", err.Error()))
	}

	fw, fh := img.Bounds().Dx(), img.Bounds().Dy()
	return &Normalized{
		PNG:    buf.Bytes(),
		Width:  fw,
		Height: fh,
		Crop:   Crop{X: 0, Y: 0, Side: min(fw, fh)},
	}, nil
}

func scaleFactor(w, h int, legacyDownscale bool) float64 {
	fw, fh := float64(w), float64(h)
	switch {
	case w < MinX || h < MinY:
		return math.Min(MinX/fw, MinY/fh)
	case w > MaxX || h > MaxY:
		if legacyDownscale {
			return math.Max(MaxX/fw, MaxY/fh)
		}
		return math.Min(MaxX/fw, MaxY/fh)
	default:
		return 1
	}
}
