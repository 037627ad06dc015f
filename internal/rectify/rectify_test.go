package rectify

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cardimage "card-scanner/internal/image"
	"card-scanner/internal/detect"
)

func numbered(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func TestRectifyUnrotatedPortraitIsSubImage(t *testing.T) {
	frame := numbered(200, 160)
	box := detect.OrientedBox{CX: 80, CY: 70, W: 40, H: 60, Confidence: 0.9}

	got := Rectify(frame, box)
	want := cardimage.Crop(frame, image.Rect(60, 40, 100, 100))
	require.Equal(t, want.Bounds(), got.Bounds())
	assert.Equal(t, want.Pix, got.Pix)
}

func TestRectifyLandscapeBecomesPortrait(t *testing.T) {
	frame := numbered(200, 160)

	t.Run("unrotated", func(t *testing.T) {
		box := detect.OrientedBox{CX: 100, CY: 80, W: 90, H: 50, Confidence: 0.9}
		got := Rectify(frame, box)
		assert.Equal(t, image.Rect(0, 0, 50, 90), got.Bounds())
		// the crop's top-right corner becomes the output's top-left
		assert.Equal(t, frame.RGBAAt(144, 55), got.RGBAAt(0, 0))
	})

	for _, angle := range []float64{0.3, -1.1, math.Pi / 2, 2.8} {
		box := detect.OrientedBox{CX: 100, CY: 80, W: 70, H: 30, Angle: angle, Confidence: 0.9}
		got := Rectify(frame, box)
		b := got.Bounds()
		assert.GreaterOrEqual(t, b.Dy(), b.Dx(), "angle %.2f", angle)
		assert.Equal(t, image.Rect(0, 0, 30, 70), b)
	}
}

func TestRectifyRotatedUniformRegion(t *testing.T) {
	fill := color.RGBA{R: 30, G: 160, B: 90, A: 255}
	frame := image.NewRGBA(image.Rect(0, 0, 300, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 300; x++ {
			frame.SetRGBA(x, y, fill)
		}
	}

	box := detect.OrientedBox{CX: 150, CY: 150, W: 60, H: 84, Angle: 0.6, Confidence: 0.8}
	got := Rectify(frame, box)
	require.Equal(t, image.Rect(0, 0, 60, 84), got.Bounds())
	assert.Equal(t, fill, got.RGBAAt(30, 42))
	assert.Equal(t, fill, got.RGBAAt(2, 2))
}

func TestRectifyOutsideFrameIsTransparent(t *testing.T) {
	frame := numbered(50, 50)
	box := detect.OrientedBox{CX: 5, CY: 5, W: 20, H: 30, Confidence: 0.7}
	got := Rectify(frame, box)
	assert.Equal(t, color.RGBA{}, got.RGBAAt(0, 0))
	assert.Equal(t, frame.RGBAAt(0, 0), got.RGBAAt(5, 10))
}
