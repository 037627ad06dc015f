package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-scanner/internal/catalog"
	"card-scanner/internal/descriptor"
	"card-scanner/internal/detect"
	"card-scanner/internal/identify"
	cardimage "card-scanner/internal/image"
)

type fakeDetector struct {
	boxes  []detect.OrientedBox
	status detect.Status
	err    error
}

func (f *fakeDetector) Detect(ctx context.Context, frame *image.RGBA) ([]detect.OrientedBox, error) {
	if f.status != detect.StatusReady {
		return nil, detect.ErrNotReady
	}
	return f.boxes, f.err
}
func (f *fakeDetector) Status() detect.Status       { return f.status }
func (f *fakeDetector) Precision() detect.Precision { return detect.PrecisionModel }
func (f *fakeDetector) Close() error                { return nil }

var (
	redBox  = detect.OrientedBox{CX: 70, CY: 120, W: 100, H: 140, Confidence: 0.7}
	blueBox = detect.OrientedBox{CX: 300, CY: 120, W: 100, H: 140, Confidence: 0.9}
)

func paint(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// scene draws a red and a blue card on a gray table.
func scene() *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, 400, 260))
	paint(frame, frame.Bounds(), color.RGBA{60, 60, 60, 255})
	paint(frame, image.Rect(20, 50, 120, 190), color.RGBA{220, 10, 10, 255})
	paint(frame, image.Rect(250, 50, 350, 190), color.RGBA{10, 10, 220, 255})
	return frame
}

func testCatalog(t *testing.T, cfg descriptor.Config) *catalog.Catalog {
	t.Helper()
	frame := scene()
	var entries []catalog.Entry
	for _, c := range []struct {
		id string
		r  image.Rectangle
	}{
		{"red", image.Rect(20, 50, 120, 190)},
		{"blue", image.Rect(250, 50, 350, 190)},
	} {
		d, err := cfg.Extract(cardimage.Crop(frame, c.r))
		require.NoError(t, err)
		entries = append(entries, catalog.Entry{ID: c.id, Metadata: catalog.Metadata{Name: c.id}, Grid: d})
	}
	cat, err := catalog.New(cfg.GridSize, entries)
	require.NoError(t, err)
	return cat
}

func newPipeline(t *testing.T, det detect.Detector, opts ...Option) *Pipeline {
	cfg := descriptor.DefaultConfig().WithGridSize(4)
	id := identify.New(testCatalog(t, cfg), identify.DefaultOptions())
	return New(det, id, cfg, opts...)
}

func TestIdentifyEveryBox(t *testing.T) {
	p := newPipeline(t, &fakeDetector{boxes: []detect.OrientedBox{blueBox, redBox}, status: detect.StatusReady})
	require.True(t, p.Ready())

	results, err := p.Identify(context.Background(), scene())
	require.NoError(t, err)
	require.Len(t, results, 2)

	top, ok := results[0].Top()
	require.True(t, ok)
	assert.Equal(t, "blue", top.Entry.ID)
	assert.InDelta(t, 1.0, top.Similarity, 1e-9)

	top, _ = results[1].Top()
	assert.Equal(t, "red", top.Entry.ID)
	assert.Equal(t, redBox, results[1].Box)
}

func TestBest(t *testing.T) {
	t.Run("highest confidence box", func(t *testing.T) {
		p := newPipeline(t, &fakeDetector{boxes: []detect.OrientedBox{redBox, blueBox}, status: detect.StatusReady})
		res, err := p.Best(context.Background(), scene())
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, blueBox, res.Box)
	})

	t.Run("no card", func(t *testing.T) {
		p := newPipeline(t, &fakeDetector{status: detect.StatusReady})
		res, err := p.Best(context.Background(), scene())
		require.NoError(t, err)
		assert.Nil(t, res)
	})

	t.Run("detector not ready", func(t *testing.T) {
		p := newPipeline(t, &fakeDetector{status: detect.StatusLoading})
		assert.False(t, p.Ready())
		_, err := p.Best(context.Background(), scene())
		assert.True(t, errors.Is(err, detect.ErrNotReady))
	})

	t.Run("invalid box", func(t *testing.T) {
		bad := detect.OrientedBox{CX: 10, CY: 10, W: 0, H: 5, Confidence: 0.9}
		p := newPipeline(t, &fakeDetector{boxes: []detect.OrientedBox{bad}, status: detect.StatusReady})
		_, err := p.Best(context.Background(), scene())
		assert.ErrorIs(t, err, detect.ErrInvalidBox)
	})
}

type reverseVerifier struct{ calls int }

func (v *reverseVerifier) Verify(crop *image.RGBA, cands []identify.Candidate) []identify.Candidate {
	v.calls++
	out := make([]identify.Candidate, len(cands))
	for i, c := range cands {
		c.NameConfirmed = i == len(cands)-1
		out[len(cands)-1-i] = c
	}
	return out
}

func TestVerifierApplied(t *testing.T) {
	v := &reverseVerifier{}
	p := newPipeline(t, &fakeDetector{boxes: []detect.OrientedBox{redBox}, status: detect.StatusReady}, WithVerifier(v))

	res, err := p.Best(context.Background(), scene())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, v.calls)
	assert.Equal(t, "blue", res.Candidates[0].Entry.ID)
	assert.True(t, res.Candidates[0].NameConfirmed)
}

func TestWithDCT(t *testing.T) {
	p := newPipeline(t, &fakeDetector{status: detect.StatusReady}, WithDCT(true))
	q, err := p.query(cardimage.Crop(scene(), image.Rect(20, 50, 120, 190)))
	require.NoError(t, err)
	assert.Equal(t, descriptor.DCTLen, q.NormalDCT.Len())
	assert.Equal(t, descriptor.DCTLen, q.RotatedDCT.Len())
}
