package detect

import (
	"sort"

	"card-scanner/pkg/geometry"
)

// BoxIoU returns the overlap of two oriented boxes. With rotated=false it
// compares their axis-aligned bounding rectangles, which over-suppresses
// boxes at large relative rotation; rotated=true clips the true rectangles.
func BoxIoU(a, b OrientedBox, rotated bool) float64 {
	if rotated {
		return geometry.ConvexIoU(a.Corners(), b.Corners())
	}
	return a.AxisAligned().IoU(b.AxisAligned())
}

// SuppressOriented performs greedy non-maximum suppression. Boxes are taken
// in descending confidence (input order breaks ties); a box is kept unless
// it overlaps an already kept box by more than iouThreshold. maxKeep <= 0
// means no cap.
func SuppressOriented(boxes []OrientedBox, iouThreshold float64, rotated bool, maxKeep int) []OrientedBox {
	sorted := make([]OrientedBox, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]OrientedBox, 0, len(sorted))
	for _, cand := range sorted {
		suppressed := false
		for _, k := range kept {
			if BoxIoU(cand, k, rotated) > iouThreshold {
				suppressed = true
				break
			}
		}
		if suppressed {
			continue
		}
		kept = append(kept, cand)
		if maxKeep > 0 && len(kept) == maxKeep {
			break
		}
	}
	return kept
}

// Best returns the highest-confidence box, or false for an empty slice.
func Best(boxes []OrientedBox) (OrientedBox, bool) {
	if len(boxes) == 0 {
		return OrientedBox{}, false
	}
	best := boxes[0]
	for _, b := range boxes[1:] {
		if b.Confidence > best.Confidence {
			best = b
		}
	}
	return best, true
}
