// Package imaging downsizes uploaded photos so they can be embedded in an
// exported report without bloating it.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned when the input cannot be decoded.
var ErrUnsupportedImage = errors.New("unsupported image")

// MaxSourcePixels caps the decoded size of an upload. Decoding allocates
// width*height pixels up front, so larger headers are refused before that.
const MaxSourcePixels = 64 << 20

// Options controls the target box and JPEG quality of Compress.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// DefaultOptions fits a photo into a quarter of an A4 page, roughly 7.5cm x
// 5.5cm at 96dpi.
var DefaultOptions = Options{MaxWidth: 520, MaxHeight: 390, Quality: 45}

// FitWithin scales srcW x srcH to fit inside maxW x maxH preserving the
// aspect ratio. Images already inside the box keep their size.
func FitWithin(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	ratio := math.Min(float64(maxW)/float64(srcW), float64(maxH)/float64(srcH))
	if ratio >= 1 {
		return srcW, srcH
	}
	w := max(1, int(math.Round(float64(srcW)*ratio)))
	h := max(1, int(math.Round(float64(srcH)*ratio)))
	return w, h
}

// Compress decodes data, scales it into the target box and re-encodes it as
// JPEG. A JPEG that already fits and is no larger than its re-encoding is
// returned as is.
func Compress(data []byte, opts Options) ([]byte, error) {
	opts = opts.normalized()

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedImage, cfg.Width, cfg.Height, MaxSourcePixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), opts.MaxWidth, opts.MaxHeight)
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha channel; transparent regions come out white.
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}

	if format == "jpeg" && w == b.Dx() && h == b.Dy() && len(data) <= buf.Len() {
		return data, nil
	}
	return buf.Bytes(), nil
}

func (o Options) normalized() Options {
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultOptions.MaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = DefaultOptions.MaxHeight
	}
	o.Quality = min(max(o.Quality, 1), 100)
	return o
}
