package detect

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"card-scanner/pkg/colorutil"
)

// Letterbox records how a frame was fitted into the square model input so
// detections can be mapped back to frame pixels.
type Letterbox struct {
	Size  int     // square input side
	Scale float64 // input pixels per frame pixel
	PadX  float64 // left padding in input pixels
	PadY  float64 // top padding in input pixels
}

// ComputeLetterbox returns the fit of a w x h frame into a size x size input,
// preserving aspect ratio and centring the scaled frame.
func ComputeLetterbox(w, h, size int) Letterbox {
	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	return Letterbox{
		Size:  size,
		Scale: scale,
		PadX:  float64((size - nw) / 2),
		PadY:  float64((size - nh) / 2),
	}
}

// ScaledRect returns the region of the input covered by the frame.
func (lb Letterbox) ScaledRect(w, h int) image.Rectangle {
	nw := int(math.Round(float64(w) * lb.Scale))
	nh := int(math.Round(float64(h) * lb.Scale))
	x0, y0 := int(lb.PadX), int(lb.PadY)
	return image.Rect(x0, y0, x0+nw, y0+nh)
}

// LetterboxImage resizes src into a size x size canvas padded with neutral
// gray and returns the canvas with its mapping.
func LetterboxImage(src *image.RGBA, size int) (*image.RGBA, Letterbox) {
	b := src.Bounds()
	lb := ComputeLetterbox(b.Dx(), b.Dy(), size)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.Draw(dst, dst.Bounds(), &image.Uniform{C: colorutil.LetterboxGray}, image.Point{}, xdraw.Src)
	xdraw.BiLinear.Scale(dst, lb.ScaledRect(b.Dx(), b.Dy()), src, b, xdraw.Src, nil)
	return dst, lb
}

// Unletterbox maps a box from model input space back to frame pixels.
func (lb Letterbox) Unletterbox(box OrientedBox) OrientedBox {
	box.CX = (box.CX - lb.PadX) / lb.Scale
	box.CY = (box.CY - lb.PadY) / lb.Scale
	box.W /= lb.Scale
	box.H /= lb.Scale
	return box
}

// ToInput maps a box from frame pixels into model input space.
func (lb Letterbox) ToInput(box OrientedBox) OrientedBox {
	box.CX = box.CX*lb.Scale + lb.PadX
	box.CY = box.CY*lb.Scale + lb.PadY
	box.W *= lb.Scale
	box.H *= lb.Scale
	return box
}
