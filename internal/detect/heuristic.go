package detect

import (
	"context"
	"image"
	"math"

	"gonum.org/v1/gonum/stat"

	"card-scanner/pkg/colorutil"
)

// Card aspect ratio (width:height) used to size the guide region.
const (
	cardAspectW = 63.0
	cardAspectH = 88.0
)

// HeuristicParams configures the single-region fallback detector.
type HeuristicParams struct {
	// GuideHeight is the guide region height as a fraction of frame height.
	GuideHeight float64
	// VarianceThreshold is the minimum gradient-magnitude variance inside
	// the guide region for it to count as a card.
	VarianceThreshold float64
}

// DefaultHeuristicParams returns the fallback defaults.
func DefaultHeuristicParams() HeuristicParams {
	return HeuristicParams{
		GuideHeight:       0.70,
		VarianceThreshold: 150,
	}
}

// HeuristicDetector reports the centred guide region as a card when it holds
// enough edge texture. It needs no model and is always ready, but it returns
// at most one box and never localises: treat its output as a guess.
type HeuristicDetector struct {
	params HeuristicParams
}

// NewHeuristicDetector creates the fallback detector.
func NewHeuristicDetector(params HeuristicParams) *HeuristicDetector {
	if params.GuideHeight <= 0 || params.GuideHeight > 1 {
		params.GuideHeight = DefaultHeuristicParams().GuideHeight
	}
	if params.VarianceThreshold <= 0 {
		params.VarianceThreshold = DefaultHeuristicParams().VarianceThreshold
	}
	return &HeuristicDetector{params: params}
}

// GuideRegion returns the centred card-shaped region for a w x h frame.
func (d *HeuristicDetector) GuideRegion(w, h int) image.Rectangle {
	gh := int(math.Round(float64(h) * d.params.GuideHeight))
	gw := int(math.Round(float64(gh) * cardAspectW / cardAspectH))
	if gw > w {
		gw = w
	}
	x0 := (w - gw) / 2
	y0 := (h - gh) / 2
	return image.Rect(x0, y0, x0+gw, y0+gh)
}

// Detect implements Detector.
func (d *HeuristicDetector) Detect(ctx context.Context, frame *image.RGBA) ([]OrientedBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := frame.Bounds()
	region := d.GuideRegion(b.Dx(), b.Dy())
	if region.Dx() < 3 || region.Dy() < 3 {
		return nil, nil
	}

	variance := gradientVariance(frame, region.Add(b.Min))
	if variance < d.params.VarianceThreshold {
		return nil, nil
	}

	conf := 0.6 + 0.35*math.Min(1, variance/(4*d.params.VarianceThreshold))
	c := region.Min.Add(region.Size().Div(2))
	return []OrientedBox{{
		CX:         float64(c.X),
		CY:         float64(c.Y),
		W:          float64(region.Dx()),
		H:          float64(region.Dy()),
		Confidence: conf,
	}}, nil
}

// Status implements Detector; the heuristic is always ready.
func (d *HeuristicDetector) Status() Status { return StatusReady }

// Precision implements Detector.
func (d *HeuristicDetector) Precision() Precision { return PrecisionHeuristic }

// Close implements Detector.
func (d *HeuristicDetector) Close() error { return nil }

// gradientVariance returns the variance of the Sobel gradient magnitude of
// luma over the interior of r.
func gradientVariance(img *image.RGBA, r image.Rectangle) float64 {
	w, h := r.Dx(), r.Dy()
	luma := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(r.Min.X+x, r.Min.Y+y)
			luma[y*w+x] = colorutil.Luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
		}
	}

	at := func(x, y int) float64 { return luma[y*w+x] }
	mags := make([]float64, 0, (w-2)*(h-2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			mags = append(mags, math.Hypot(gx, gy))
		}
	}
	_, variance := stat.MeanVariance(mags, nil)
	return variance
}
