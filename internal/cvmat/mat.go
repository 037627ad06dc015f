// Package cvmat converts frames between Go images and OpenCV matrices.
package cvmat

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	cardimage "card-scanner/internal/image"
)

// FromRGBA copies an RGBA frame into a new 8-bit BGR Mat. The caller owns
// the Mat and must Close it.
func FromRGBA(img *image.RGBA) (gocv.Mat, error) {
	b := img.Bounds()
	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC3, cardimage.BGRBytes(img))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create mat: %w", err)
	}
	return mat, nil
}

// ToRGBA copies an 8-bit BGR or grayscale Mat into a new RGBA frame.
func ToRGBA(mat gocv.Mat) (*image.RGBA, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("empty mat")
	}
	w, h := mat.Cols(), mat.Rows()
	switch mat.Type() {
	case gocv.MatTypeCV8UC3:
		return cardimage.FromBGRBytes(mat.ToBytes(), w, h), nil
	case gocv.MatTypeCV8UC1:
		return cardimage.FromGrayBytes(mat.ToBytes(), w, h), nil
	default:
		return nil, fmt.Errorf("unsupported mat type %v", mat.Type())
	}
}
