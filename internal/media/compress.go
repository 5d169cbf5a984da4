package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/sync/semaphore"

	"storefront-service/internal/domain"
)

const (
	DefaultMaxDimension = 800
	DefaultQuality      = 60
	DefaultTargetBytes  = 50 * 1024
	DefaultMaxPixels    = 40_000_000
	minQuality          = 20
	qualityStep         = 10
)

// Options tune the compressor. Zero values fall back to the defaults.
type Options struct {
	MaxDimension int
	Quality      int
	TargetBytes  int
	Workers      int
	// MaxPixels caps width*height read from the image header before the
	// pixel buffer is allocated.
	MaxPixels int
}

// Image is an encoded image ready for storage.
type Image struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Compressor shrinks uploaded product photos on a bounded pool of workers.
type Compressor struct {
	opts   Options
	slots  *semaphore.Weighted
	logger *zap.Logger
}

func NewCompressor(opts Options, logger *zap.Logger) *Compressor {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.TargetBytes <= 0 {
		opts.TargetBytes = DefaultTargetBytes
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compressor{
		opts:   opts,
		slots:  semaphore.NewWeighted(int64(opts.Workers)),
		logger: logger,
	}
}

// Compress waits for a free worker, then downscales and re-encodes data as JPEG.
// Cancelling ctx abandons the wait; a compression that has started runs to completion.
// Inputs already within the target size and dimensions are returned untouched.
func (c *Compressor) Compress(ctx context.Context, data []byte) (*Image, error) {
	if err := c.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.slots.Release(1)
	return c.compress(data)
}

func (c *Compressor) compress(data []byte) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewValidationError("unsupported image: expected jpeg, png or gif", "image")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(c.opts.MaxPixels) {
		return nil, domain.NewValidationError(
			fmt.Sprintf("image is %dx%d; at most %d pixels are accepted", cfg.Width, cfg.Height, c.opts.MaxPixels), "image")
	}
	if len(data) <= c.opts.TargetBytes && cfg.Width <= c.opts.MaxDimension && cfg.Height <= c.opts.MaxDimension {
		return &Image{Data: data, ContentType: http.DetectContentType(data), Width: cfg.Width, Height: cfg.Height}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewValidationError("image could not be decoded", "image")
	}
	dst := c.scale(src)

	var buf bytes.Buffer
	quality := c.opts.Quality
	for {
		buf.Reset()
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("media: encode jpeg: %w", err)
		}
		if buf.Len() <= c.opts.TargetBytes || quality-qualityStep < minQuality {
			break
		}
		quality -= qualityStep
	}

	b := dst.Bounds()
	c.logger.Debug("image compressed",
		zap.String("format", format),
		zap.Int("original_bytes", len(data)),
		zap.Int("compressed_bytes", buf.Len()),
		zap.Int("quality", quality),
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()),
	)
	return &Image{Data: buf.Bytes(), ContentType: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

// scale fits src into MaxDimension on its longest edge over a white background, since
// JPEG has no transparency.
func (c *Compressor) scale(src image.Image) *image.RGBA {
	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()
	if longest := max(w, h); longest > c.opts.MaxDimension {
		w = max(1, w*c.opts.MaxDimension/longest)
		h = max(1, h*c.opts.MaxDimension/longest)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	return dst
}
