// Package descriptor computes the colour-grid feature vector that the
// identifier compares against the catalog.
//
// Only the illustration region of an upright card crop is used. Each RGB
// channel is histogram-equalised at full resolution, then area-downsampled
// to a GridSize x GridSize grid. Catalog descriptors must be produced with
// the same Config as query descriptors.
package descriptor

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Region is a sub-rectangle of the portrait crop as fractions of its size.
type Region struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// ArtRegion is the illustration box of a standard portrait card.
var ArtRegion = Region{Top: 0.05, Bottom: 0.55, Left: 0.05, Right: 0.95}

// Bounds returns the pixel rectangle of the region in a w x h crop, at least
// one pixel in each direction.
func (r Region) Bounds(w, h int) image.Rectangle {
	x0 := clampInt(int(math.Round(float64(w)*r.Left)), 0, w-1)
	x1 := clampInt(int(math.Round(float64(w)*r.Right)), x0+1, w)
	y0 := clampInt(int(math.Round(float64(h)*r.Top)), 0, h-1)
	y1 := clampInt(int(math.Round(float64(h)*r.Bottom)), y0+1, h)
	return image.Rect(x0, y0, x1, y1)
}

// Config is the extraction configuration.
type Config struct {
	GridSize int    `json:"grid_size"`
	Region   Region `json:"region"`
	Equalize bool   `json:"equalize"`
}

// DefaultConfig returns the configuration the shipped catalog was built with.
func DefaultConfig() Config {
	return Config{
		GridSize: 16,
		Region:   ArtRegion,
		Equalize: true,
	}
}

// WithGridSize returns a copy with a different grid size.
func (c Config) WithGridSize(n int) Config {
	c.GridSize = n
	return c
}

// WithEqualize returns a copy with equalisation enabled or disabled.
func (c Config) WithEqualize(enabled bool) Config {
	c.Equalize = enabled
	return c
}

// Len is the descriptor length, 3 * GridSize^2.
func (c Config) Len() int {
	return 3 * c.GridSize * c.GridSize
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.GridSize < 2 {
		return fmt.Errorf("grid size %d must be at least 2", c.GridSize)
	}
	r := c.Region
	if r.Top < 0 || r.Left < 0 || r.Bottom > 1 || r.Right > 1 || r.Top >= r.Bottom || r.Left >= r.Right {
		return fmt.Errorf("invalid region %+v", r)
	}
	return nil
}

// Descriptor is a feature vector with its cached L2 norm.
type Descriptor struct {
	Values []float64
	Norm   float64
}

// New wraps values and caches their norm.
func New(values []float64) Descriptor {
	return Descriptor{Values: values, Norm: floats.Norm(values, 2)}
}

// Len returns the vector length.
func (d Descriptor) Len() int {
	return len(d.Values)
}

// ErrEmptyCrop is returned for crops without pixels.
var ErrEmptyCrop = errors.New("empty crop")

// Extract computes the colour-grid descriptor of an upright crop. Values are
// row-major with R, G, B interleaved per cell, each in [0,1]. The result is
// deterministic for a given crop and Config.
func (c Config) Extract(crop *image.RGBA) (Descriptor, error) {
	planes, w, h, err := c.regionPlanes(crop)
	if err != nil {
		return Descriptor{}, err
	}

	n := c.GridSize
	values := make([]float64, 3*n*n)
	for ch, plane := range planes {
		cells := AreaResize(plane, w, h, n, n)
		for i, v := range cells {
			values[i*3+ch] = float64(v) / 255
		}
	}
	return New(values), nil
}

// regionPlanes returns the (optionally equalised) R, G, B planes of the
// configured region.
func (c Config) regionPlanes(crop *image.RGBA) ([3][]uint8, int, int, error) {
	var planes [3][]uint8
	b := crop.Bounds()
	if b.Empty() {
		return planes, 0, 0, ErrEmptyCrop
	}

	r := c.Region.Bounds(b.Dx(), b.Dy()).Add(b.Min)
	w, h := r.Dx(), r.Dy()
	for ch := range planes {
		planes[ch] = make([]uint8, w*h)
	}
	for y := 0; y < h; y++ {
		off := crop.PixOffset(r.Min.X, r.Min.Y+y)
		for x := 0; x < w; x++ {
			i := y*w + x
			planes[0][i] = crop.Pix[off]
			planes[1][i] = crop.Pix[off+1]
			planes[2][i] = crop.Pix[off+2]
			off += 4
		}
	}

	if c.Equalize {
		for ch := range planes {
			planes[ch] = Equalize(planes[ch])
		}
	}
	return planes, w, h, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
