// Package colorutil provides shared color utilities for the card scanner.
package colorutil

import (
	"image/color"
)

// LetterboxGray is the neutral pad color for model input, matching the
// value the detector was trained with.
var LetterboxGray = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// Luma returns the Rec. 601 luma of an 8-bit RGB triple (0-255).
func Luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}
