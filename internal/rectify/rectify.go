// Package rectify turns an oriented detection into an upright portrait crop.
package rectify

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	cardimage "card-scanner/internal/image"
	"card-scanner/internal/detect"
	"card-scanner/pkg/geometry"
)

// Rectify cuts box out of frame and de-rotates it. The result is always
// portrait: landscape crops are turned a quarter turn counter-clockwise.
// Areas of the box outside the frame are transparent black.
//
// The box must satisfy detect.OrientedBox.Validate.
func Rectify(frame *image.RGBA, box detect.OrientedBox) *image.RGBA {
	rw := maxInt(1, int(math.Round(box.W)))
	rh := maxInt(1, int(math.Round(box.H)))

	var crop *image.RGBA
	if box.Angle == 0 {
		x0 := int(math.Round(box.CX - box.W/2))
		y0 := int(math.Round(box.CY - box.H/2))
		crop = cardimage.Crop(frame, image.Rect(x0, y0, x0+rw, y0+rh).Add(frame.Bounds().Min))
	} else {
		crop = derotate(frame, box, rw, rh)
	}

	if rw > rh {
		return cardimage.Rotate90CCW(crop)
	}
	return crop
}

// derotate samples the frame rotated by -angle about the box centre into a
// buffer the size of the box diagonal, then centre-crops rw x rh.
func derotate(frame *image.RGBA, box detect.OrientedBox, rw, rh int) *image.RGBA {
	d := int(math.Ceil(math.Hypot(box.W, box.H)))
	d = maxInt(d, maxInt(rw, rh))
	half := float64(d) / 2

	origin := frame.Bounds().Min
	// buffer -> frame: centre the buffer on the box, rotate into the box axes
	bufToFrame := geometry.Translation(box.CX+float64(origin.X), box.CY+float64(origin.Y)).
		Compose(geometry.Rotation(box.Angle)).
		Compose(geometry.Translation(-half, -half))
	frameToBuf, ok := bufToFrame.Inverse()
	if !ok {
		return image.NewRGBA(image.Rect(0, 0, rw, rh))
	}

	buf := image.NewRGBA(image.Rect(0, 0, d, d))
	xdraw.BiLinear.Transform(buf, frameToBuf.Aff3(), frame, frame.Bounds(), xdraw.Src, nil)

	x0 := (d - rw) / 2
	y0 := (d - rh) / 2
	return cardimage.Crop(buf, image.Rect(x0, y0, x0+rw, y0+rh))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
