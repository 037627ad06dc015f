package descriptor

import (
	"image"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DCT descriptor geometry: the art region is resized to DCTSize^2 and the
// low-frequency DCTBlock^2 corner minus the DC term is kept per channel.
const (
	DCTSize  = 32
	DCTBlock = 8
	DCTLen   = 3 * (DCTBlock*DCTBlock - 1)
)

// dctBasis is the unnormalised DCT-II matrix C[k][n] = cos(pi/N * k * (n+0.5)).
var dctBasis = func() *mat.Dense {
	c := mat.NewDense(DCTSize, DCTSize, nil)
	for k := 0; k < DCTSize; k++ {
		for n := 0; n < DCTSize; n++ {
			c.Set(k, n, math.Cos(math.Pi/DCTSize*float64(k)*(float64(n)+0.5)))
		}
	}
	return c
}()

// ExtractDCT computes the low-frequency DCT descriptor of the same region
// and equalisation as Extract. It has DCTLen values ordered R, G, B, each
// channel's 8x8 block row-major without the DC coefficient. Inputs are raw
// 0-255 intensities, so coefficients are on that scale.
func (c Config) ExtractDCT(crop *image.RGBA) (Descriptor, error) {
	planes, w, h, err := c.regionPlanes(crop)
	if err != nil {
		return Descriptor{}, err
	}

	values := make([]float64, 0, DCTLen)
	for _, plane := range planes {
		small := AreaResize(plane, w, h, DCTSize, DCTSize)
		x := mat.NewDense(DCTSize, DCTSize, nil)
		for i, v := range small {
			x.Set(i/DCTSize, i%DCTSize, float64(v))
		}

		var tmp, coeffs mat.Dense
		tmp.Mul(dctBasis, x)
		coeffs.Mul(&tmp, dctBasis.T())

		for k := 0; k < DCTBlock; k++ {
			for l := 0; l < DCTBlock; l++ {
				if k == 0 && l == 0 {
					continue
				}
				values = append(values, coeffs.At(k, l))
			}
		}
	}
	return New(values), nil
}

// Round4 rounds every value to four decimals, the precision catalogs are
// stored with.
func Round4(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Round(v*1e4) / 1e4
	}
	return out
}
