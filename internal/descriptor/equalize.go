package descriptor

// Equalize returns a histogram-equalised copy of a single-channel plane:
// each value v maps to round((cdf[v] - cdfMin) * 255 / (total - cdfMin)).
// A plane with a single distinct value has no contrast to stretch and is
// returned unchanged.
func Equalize(plane []uint8) []uint8 {
	out := make([]uint8, len(plane))
	copy(out, plane)
	if len(plane) == 0 {
		return out
	}

	var hist [256]int
	for _, v := range plane {
		hist[v]++
	}

	var cdf [256]int
	cdf[0] = hist[0]
	for i := 1; i < 256; i++ {
		cdf[i] = cdf[i-1] + hist[i]
	}

	minCDF := 0
	for i := 0; i < 256; i++ {
		if cdf[i] > 0 {
			minCDF = cdf[i]
			break
		}
	}

	total := cdf[255]
	if total == minCDF {
		return out
	}

	var lut [256]uint8
	den := total - minCDF
	for i := 0; i < 256; i++ {
		if hist[i] == 0 {
			continue
		}
		lut[i] = uint8(((cdf[i]-minCDF)*255 + den/2) / den)
	}
	for i, v := range plane {
		out[i] = lut[v]
	}
	return out
}
