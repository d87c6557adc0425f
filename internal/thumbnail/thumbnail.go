// Package thumbnail renders preview images for uploaded photos and scans.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register decoder
	"image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/bmp" // register decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// maxSourcePixels rejects sources whose decoded bitmap would be unreasonably large.
const maxSourcePixels = 64 << 20

var (
	// ErrUnsupportedFormat is returned when the source cannot be decoded or the
	// requested output format is unknown.
	ErrUnsupportedFormat = errors.New("thumbnail: unsupported image format")
	// ErrTooLarge is returned for sources above maxSourcePixels.
	ErrTooLarge = errors.New("thumbnail: source image too large")
)

// Spec is the bounding box and encoding of a thumbnail.
type Spec struct {
	Width   int
	Height  int
	Format  string // jpeg or png
	Quality int    // jpeg only, 1..100
}

// Result is an encoded thumbnail.
type Result struct {
	Data        []byte
	ContentType string
	Ext         string
}

// Thumbnailer turns image bytes into a thumbnail.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, data []byte, spec Spec) (Result, error)
}

// Resizer is the default Thumbnailer. It scales the source to fit inside the
// box while keeping its aspect ratio and never upscales.
type Resizer struct {
	Scaler draw.Scaler
}

// NewResizer returns a Resizer using Catmull-Rom resampling.
func NewResizer() *Resizer {
	return &Resizer{Scaler: draw.CatmullRom}
}

// Thumbnail implements Thumbnailer.
func (r *Resizer) Thumbnail(ctx context.Context, data []byte, spec Spec) (Result, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return Result{}, fmt.Errorf("thumbnail: invalid box %dx%d", spec.Width, spec.Height)
	}
	format, ext, contentType, err := outputFormat(spec.Format)
	if err != nil {
		return Result{}, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxSourcePixels {
		return Result{}, ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	w, h := Fit(src.Bounds().Dx(), src.Bounds().Dy(), spec.Width, spec.Height)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if format == "jpeg" {
		// JPEG has no alpha; flatten onto white.
		draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	}
	scaler := r.Scaler
	if scaler == nil {
		scaler = draw.CatmullRom
	}
	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		q := spec.Quality
		if q < 1 || q > 100 {
			q = jpeg.DefaultQuality
		}
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: q})
	case "png":
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return Result{}, fmt.Errorf("thumbnail: encode %s: %w", format, err)
	}
	return Result{Data: buf.Bytes(), ContentType: contentType, Ext: ext}, nil
}

// Fit returns the largest size with the source aspect ratio that fits inside
// maxW x maxH. Sources already inside the box keep their size.
func Fit(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 1, 1
	}
	if srcW <= maxW && srcH <= maxH {
		return srcW, srcH
	}
	// Compare srcW/maxW against srcH/maxH without floating point.
	var w, h int
	if int64(srcW)*int64(maxH) >= int64(srcH)*int64(maxW) {
		w = maxW
		h = int(int64(srcH) * int64(maxW) / int64(srcW))
	} else {
		h = maxH
		w = int(int64(srcW) * int64(maxH) / int64(srcH))
	}
	return max(w, 1), max(h, 1)
}

func outputFormat(name string) (format, ext, contentType string, err error) {
	switch strings.ToLower(name) {
	case "", "jpeg", "jpg":
		return "jpeg", "jpg", "image/jpeg", nil
	case "png":
		return "png", "png", "image/png", nil
	default:
		return "", "", "", fmt.Errorf("%w: output %q", ErrUnsupportedFormat, name)
	}
}

var _ Thumbnailer = (*Resizer)(nil)
