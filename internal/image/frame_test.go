package image

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// numbered fills a w x h frame where each pixel encodes its own coordinates.
func numbered(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	return img
}

func TestRotate90CCW(t *testing.T) {
	src := numbered(4, 2)
	dst := Rotate90CCW(src)

	require.Equal(t, image.Rect(0, 0, 2, 4), dst.Bounds())
	// top-right corner of a landscape frame becomes top-left
	assert.Equal(t, src.RGBAAt(3, 0), dst.RGBAAt(0, 0))
	// bottom-left becomes bottom-right
	assert.Equal(t, src.RGBAAt(0, 1), dst.RGBAAt(1, 3))
	assert.False(t, IsLandscape(dst))
}

func TestRotate180(t *testing.T) {
	src := numbered(5, 3)
	dst := Rotate180(src)
	assert.Equal(t, src.RGBAAt(0, 0), dst.RGBAAt(4, 2))
	assert.Equal(t, src.RGBAAt(4, 2), dst.RGBAAt(0, 0))

	assert.Equal(t, src.Pix, Rotate180(dst).Pix)
}

func TestCrop(t *testing.T) {
	src := numbered(10, 10)
	dst := Crop(src, image.Rect(2, 3, 6, 8))
	require.Equal(t, image.Rect(0, 0, 4, 5), dst.Bounds())
	assert.Equal(t, src.RGBAAt(2, 3), dst.RGBAAt(0, 0))
	assert.Equal(t, src.RGBAAt(5, 7), dst.RGBAAt(3, 4))
}

func TestToRGBANormalisesOrigin(t *testing.T) {
	src := numbered(6, 6)
	sub := src.SubImage(image.Rect(2, 2, 5, 5))
	got := ToRGBA(sub)
	assert.Equal(t, image.Point{}, got.Rect.Min)
	assert.Equal(t, src.RGBAAt(2, 2), got.RGBAAt(0, 0))

	assert.Same(t, src, ToRGBA(src))
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, numbered(3, 2)))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), got.Bounds())

	_, err = Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestIsSupportedFormat(t *testing.T) {
	assert.True(t, IsSupportedFormat("cards/ogn-001.WEBP"))
	assert.True(t, IsSupportedFormat("photo.jpg"))
	assert.False(t, IsSupportedFormat("notes.txt"))
}
