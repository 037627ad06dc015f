// Package image provides frame loading and the raster operations shared by
// the detection pipeline. Frames are always *image.RGBA with a (0,0) origin.
package image

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Load decodes an image file into an RGBA frame.
func Load(path string) (*image.RGBA, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// Decode reads any registered image format into an RGBA frame.
func Decode(r io.Reader) (*image.RGBA, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return ToRGBA(img), nil
}

// ToRGBA returns img as an RGBA frame with a (0,0) origin. Frames that
// already satisfy this are returned as-is without copying.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Crop copies the part of src inside r into a new frame. Areas of r outside
// src stay transparent black.
func Crop(src *image.RGBA, r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	return dst
}

// Rotate90CCW returns src turned a quarter turn counter-clockwise, so a
// landscape frame becomes portrait.
func Rotate90CCW(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			// (x, y) lands at (y, w-1-x)
			di := dst.PixOffset(y, w-1-x)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}

// Rotate180 returns src turned upside down.
func Rotate180(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			di := dst.PixOffset(w-1-x, h-1-y)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}

// IsLandscape reports whether the frame is wider than it is tall.
func IsLandscape(img image.Image) bool {
	b := img.Bounds()
	return b.Dx() > b.Dy()
}

// SupportedFormats returns the list of supported image file extensions.
func SupportedFormats() []string {
	return []string{".jpg", ".jpeg", ".png", ".webp", ".tiff", ".tif"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
