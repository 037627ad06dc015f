package descriptor

import "math"

// tap is one source index and its coverage weight for an output cell.
type tap struct {
	index  int
	weight float64
}

// areaTaps splits [0,src) into dst equal spans and returns, per span, the
// source pixels it overlaps with their fractional coverage.
func areaTaps(src, dst int) [][]tap {
	scale := float64(src) / float64(dst)
	taps := make([][]tap, dst)
	for i := 0; i < dst; i++ {
		lo := float64(i) * scale
		hi := float64(i+1) * scale
		for s := int(math.Floor(lo)); s < src && float64(s) < hi; s++ {
			w := math.Min(hi, float64(s+1)) - math.Max(lo, float64(s))
			if w > 1e-12 {
				taps[i] = append(taps[i], tap{index: s, weight: w})
			}
		}
	}
	return taps
}

// AreaResize resamples a w x h single-channel plane to dw x dh. Every output
// cell is the coverage-weighted mean of the source pixels under it, rounded
// to the nearest integer.
func AreaResize(plane []uint8, w, h, dw, dh int) []uint8 {
	tx := areaTaps(w, dw)
	ty := areaTaps(h, dh)
	out := make([]uint8, dw*dh)

	for oy, rows := range ty {
		for ox, cols := range tx {
			var sum, area float64
			for _, ry := range rows {
				base := ry.index * w
				for _, cx := range cols {
					wt := ry.weight * cx.weight
					sum += wt * float64(plane[base+cx.index])
					area += wt
				}
			}
			v := math.Round(sum / area)
			if v > 255 {
				v = 255
			}
			out[oy*dw+ox] = uint8(v)
		}
	}
	return out
}
