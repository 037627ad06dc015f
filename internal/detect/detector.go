package detect

import (
	"context"
	"errors"
	"image"
)

// ErrNotReady is returned by Detect while the backend is not in StatusReady.
// Callers use it to tell "detector broken or still loading" apart from
// "no card visible", which is an empty result with a nil error.
var ErrNotReady = errors.New("detector not ready")

// Detector finds card-shaped regions in a frame.
type Detector interface {
	// Detect returns boxes in frame pixel coordinates, highest confidence
	// first, already overlap-suppressed. An empty slice means no card.
	Detect(ctx context.Context, frame *image.RGBA) ([]OrientedBox, error)

	// Status returns the backend lifecycle state.
	Status() Status

	// Precision reports whether boxes come from a model or the fallback.
	Precision() Precision

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds detection parameters shared by the backends.
type Config struct {
	// InputSize is the model's square input side in pixels.
	InputSize int
	// ConfThreshold drops candidates below this class confidence.
	ConfThreshold float64
	// IoUThreshold suppresses overlapping candidates above this IoU.
	IoUThreshold float64
	// RotatedIoU uses exact rotated-rectangle overlap in NMS instead of the
	// axis-aligned approximation.
	RotatedIoU bool
	// MaxDetections caps the number of boxes returned per frame.
	MaxDetections int
	// NumClasses is the number of class score rows in the model output.
	NumClasses int
}

// DefaultConfig returns the parameters the card model was exported with.
func DefaultConfig() Config {
	return Config{
		InputSize:     640,
		ConfThreshold: 0.6,
		IoUThreshold:  0.45,
		MaxDetections: 10,
		NumClasses:    1,
	}
}

// WithThresholds returns a copy with custom confidence and IoU thresholds.
func (c Config) WithThresholds(conf, iou float64) Config {
	c.ConfThreshold = conf
	c.IoUThreshold = iou
	return c
}

// WithRotatedIoU returns a copy with exact rotated IoU enabled or disabled.
func (c Config) WithRotatedIoU(enabled bool) Config {
	c.RotatedIoU = enabled
	return c
}

// Select returns model when it is non-nil, otherwise the heuristic fallback
// when allowed. It returns nil when neither is available.
func Select(model Detector, allowHeuristic bool, params HeuristicParams) Detector {
	if model != nil {
		return model
	}
	if allowHeuristic {
		return NewHeuristicDetector(params)
	}
	return nil
}
