// Package detect locates oriented card-shaped regions in a frame.
package detect

import (
	"errors"
	"fmt"
	"math"

	"card-scanner/pkg/geometry"
)

// ErrInvalidBox is returned when a box violates w,h > 0 or confidence in [0,1].
var ErrInvalidBox = errors.New("invalid oriented box")

// OrientedBox is a rotated rectangle in frame pixel coordinates.
// Angle is the rotation of the box's local axes relative to the frame, in
// radians; positive turns clockwise on screen (y down).
type OrientedBox struct {
	CX         float64 `json:"cx"`
	CY         float64 `json:"cy"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	Angle      float64 `json:"angle"`
	Confidence float64 `json:"confidence"`
}

// Validate checks the box invariants.
func (b OrientedBox) Validate() error {
	if !(b.W > 0) || !(b.H > 0) {
		return fmt.Errorf("%w: size %.2fx%.2f", ErrInvalidBox, b.W, b.H)
	}
	if math.IsNaN(b.Confidence) || b.Confidence < 0 || b.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.3f", ErrInvalidBox, b.Confidence)
	}
	if math.IsNaN(b.CX) || math.IsNaN(b.CY) || math.IsNaN(b.Angle) {
		return fmt.Errorf("%w: NaN geometry", ErrInvalidBox)
	}
	return nil
}

// Center returns the box center.
func (b OrientedBox) Center() geometry.Point2D {
	return geometry.Point2D{X: b.CX, Y: b.CY}
}

// Corners returns the four box corners in frame coordinates, starting at the
// local top-left and running clockwise on screen.
func (b OrientedBox) Corners() []geometry.Point2D {
	hw, hh := b.W/2, b.H/2
	local := []geometry.Point2D{{X: -hw, Y: -hh}, {X: hw, Y: -hh}, {X: hw, Y: hh}, {X: -hw, Y: hh}}
	toFrame := geometry.Translation(b.CX, b.CY).Compose(geometry.Rotation(b.Angle))
	for i := range local {
		local[i] = toFrame.Apply(local[i])
	}
	return local
}

// AxisAligned returns the axis-aligned bounding rectangle of the rotated box.
func (b OrientedBox) AxisAligned() geometry.Rect {
	return geometry.BoundingBox(b.Corners())
}

// IsLandscape reports whether the box is wider than tall in its own frame.
func (b OrientedBox) IsLandscape() bool {
	return b.W > b.H
}

// Precision tells callers how far to trust a detector's boxes.
type Precision int

const (
	// PrecisionModel indicates boxes from a trained detection model.
	PrecisionModel Precision = iota
	// PrecisionHeuristic indicates the single-region fallback; boxes are a
	// guide-region guess, not a localisation.
	PrecisionHeuristic
)

func (p Precision) String() string {
	switch p {
	case PrecisionModel:
		return "model"
	case PrecisionHeuristic:
		return "heuristic"
	default:
		return "unknown"
	}
}
