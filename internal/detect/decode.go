package detect

import (
	"fmt"
	"math"
)

// DecodeOBB turns a raw YOLO-OBB output tensor into candidate boxes in model
// input space. The tensor is attribute-major: rows are cx, cy, w, h, one row
// per class score, then angle (radians); each column is a candidate slot.
// Candidates below threshold or with non-positive size are dropped.
func DecodeOBB(data []float32, numClasses, slots int, threshold float64) ([]OrientedBox, error) {
	if numClasses < 1 {
		return nil, fmt.Errorf("invalid class count %d", numClasses)
	}
	attrs := 4 + numClasses + 1
	if slots <= 0 || len(data) < attrs*slots {
		return nil, fmt.Errorf("output tensor has %d values, want %d x %d", len(data), attrs, slots)
	}

	at := func(row, slot int) float64 {
		return float64(data[row*slots+slot])
	}

	var boxes []OrientedBox
	for s := 0; s < slots; s++ {
		conf := 0.0
		for c := 0; c < numClasses; c++ {
			conf = math.Max(conf, at(4+c, s))
		}
		if conf < threshold {
			continue
		}
		box := OrientedBox{
			CX:         at(0, s),
			CY:         at(1, s),
			W:          at(2, s),
			H:          at(3, s),
			Angle:      at(4+numClasses, s),
			Confidence: math.Min(conf, 1),
		}
		if box.Validate() != nil {
			continue
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}
