package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"

	_ "image/jpeg"

	"golang.org/x/image/draw"
)

// RasterImage is a captured pixel snapshot of a rendered surface.
type RasterImage struct {
	Width  int
	Height int
	img    image.Image
}

// NewRasterImage wraps a captured image. The image must not be mutated afterwards.
func NewRasterImage(img image.Image) (RasterImage, error) {
	if img == nil {
		return RasterImage{}, NewError(KindRasterization, "raster snapshot is missing", nil)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return RasterImage{}, NewError(KindRasterization, fmt.Sprintf("raster snapshot is empty (%dx%d)", bounds.Dx(), bounds.Dy()), nil)
	}
	return RasterImage{Width: bounds.Dx(), Height: bounds.Dy(), img: img}, nil
}

// MaxRasterPixels bounds the decoded size of an uploaded snapshot.
const MaxRasterPixels = 50_000_000

// DecodeRaster decodes a PNG or JPEG snapshot of at most MaxRasterPixels.
func DecodeRaster(r io.Reader) (RasterImage, error) {
	return DecodeRasterLimit(r, MaxRasterPixels)
}

// DecodeRasterLimit decodes a PNG or JPEG snapshot. The header is checked
// against maxPixels before any pixel buffer is allocated.
func DecodeRasterLimit(r io.Reader, maxPixels int64) (RasterImage, error) {
	if r == nil {
		return RasterImage{}, NewError(KindRasterization, "raster snapshot is missing", nil)
	}

	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return RasterImage{}, NewError(KindRasterization, "raster snapshot could not be decoded", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return RasterImage{}, NewError(KindRasterization, fmt.Sprintf("raster snapshot is empty (%dx%d)", cfg.Width, cfg.Height), nil)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); maxPixels > 0 && pixels > maxPixels {
		return RasterImage{}, NewError(KindValidation, fmt.Sprintf("raster snapshot %dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels), nil)
	}

	img, _, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return RasterImage{}, NewError(KindRasterization, "raster snapshot could not be decoded", err)
	}
	return NewRasterImage(img)
}

// Image returns the underlying pixel buffer.
func (r RasterImage) Image() image.Image {
	return r.img
}

// Empty reports whether the raster holds no pixels.
func (r RasterImage) Empty() bool {
	return r.img == nil || r.Width <= 0 || r.Height <= 0
}

// Slice copies the rows of region into a new image anchored at the origin.
func (r RasterImage) Slice(region SourceRegion) (image.Image, error) {
	if r.Empty() {
		return nil, NewError(KindRasterization, "raster snapshot is missing", nil)
	}
	if region.Y < 0 || region.Height <= 0 || region.End() > r.Height {
		return nil, NewError(KindPaginationConsistency, fmt.Sprintf("source region [%d,%d) outside raster height %d", region.Y, region.End(), r.Height), nil)
	}

	bounds := r.img.Bounds()
	src := image.Rect(bounds.Min.X, bounds.Min.Y+region.Y, bounds.Max.X, bounds.Min.Y+region.End())
	dst := image.NewNRGBA(image.Rect(0, 0, r.Width, region.Height))
	draw.Draw(dst, dst.Bounds(), r.img, src.Min, draw.Src)
	return dst, nil
}

// encodePNG encodes a slice for embedding into the document.
func encodePNG(img image.Image, compress bool) ([]byte, error) {
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if compress {
		encoder.CompressionLevel = png.BestCompression
	}
	var buf bytes.Buffer
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RasterSource captures a raster snapshot. Capture may suspend until the
// snapshot's final dimensions are known.
type RasterSource interface {
	Rasterize(ctx context.Context) (RasterImage, error)
}

// RasterSourceFunc adapts a function to a RasterSource.
type RasterSourceFunc func(ctx context.Context) (RasterImage, error)

func (f RasterSourceFunc) Rasterize(ctx context.Context) (RasterImage, error) {
	if f == nil {
		return RasterImage{}, NewError(KindRasterization, "raster source func is nil", nil)
	}
	return f(ctx)
}

// StaticRaster is a RasterSource over an already captured image.
type StaticRaster struct {
	Raster RasterImage
}

func (s StaticRaster) Rasterize(ctx context.Context) (RasterImage, error) {
	if err := ctx.Err(); err != nil {
		return RasterImage{}, err
	}
	if s.Raster.Empty() {
		return RasterImage{}, NewError(KindRasterization, "raster snapshot is missing", nil)
	}
	return s.Raster, nil
}
